// Package app wires clients and services into a running app context.
package app
