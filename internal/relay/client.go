package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fromchat/internal/domain"
)

// Client talks JSON over HTTP to the chat server's crypto and DM endpoints.
// Every request carries the bearer token.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// New returns a client for the given base URL and bearer token.
func New(base, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Base: base, Token: token, HTTP: httpClient}
}

type publicKeyBody struct {
	PublicKey *string `json:"publicKey"`
}

type backupBody struct {
	Blob *string `json:"blob"`
}

type messagesBody struct {
	Messages []domain.DmEnvelope `json:"messages"`
}

// FetchPublicKey returns our server-recorded public key. A 404 or a null
// field means no key is on record, which is not an error.
func (c *Client) FetchPublicKey(ctx context.Context) (domain.X25519Public, bool, error) {
	var out publicKeyBody
	found, err := c.getJSON(ctx, "/crypto/public-key", &out)
	if err != nil || !found || out.PublicKey == nil || *out.PublicKey == "" {
		return domain.X25519Public{}, false, err
	}
	pub, err := decodePublicKey(*out.PublicKey)
	if err != nil {
		return domain.X25519Public{}, false, err
	}
	return pub, true, nil
}

// PublishPublicKey stores our public key on the server.
func (c *Client) PublishPublicKey(ctx context.Context, pub domain.X25519Public) error {
	b64 := base64.StdEncoding.EncodeToString(pub.Slice())
	return c.post(ctx, "/crypto/public-key", publicKeyBody{PublicKey: &b64}, nil)
}

// FetchBackup returns the stored backup blob text, with ok=false when the
// server has none.
func (c *Client) FetchBackup(ctx context.Context) (string, bool, error) {
	var out backupBody
	found, err := c.getJSON(ctx, "/crypto/backup", &out)
	if err != nil || !found || out.Blob == nil || *out.Blob == "" {
		return "", false, err
	}
	return *out.Blob, true, nil
}

// UploadBackup stores (or overwrites) the backup blob text.
func (c *Client) UploadBackup(ctx context.Context, blob string) error {
	return c.post(ctx, "/crypto/backup", backupBody{Blob: &blob}, nil)
}

// PublicKeyOf fetches another user's public key.
func (c *Client) PublicKeyOf(ctx context.Context, user domain.UserID) (domain.X25519Public, error) {
	var out publicKeyBody
	found, err := c.getJSON(ctx, "/crypto/public-key/of/"+strconv.FormatInt(int64(user), 10), &out)
	if err != nil {
		return domain.X25519Public{}, err
	}
	if !found || out.PublicKey == nil || *out.PublicKey == "" {
		return domain.X25519Public{}, fmt.Errorf("user %d has no public key", user)
	}
	return decodePublicKey(*out.PublicKey)
}

// SendDM posts one sealed envelope.
func (c *Client) SendDM(ctx context.Context, req domain.DmSendRequest) error {
	return c.post(ctx, "/dm/send", req, nil)
}

// FetchDMs returns envelopes addressed to us, optionally only those newer
// than since.
func (c *Client) FetchDMs(ctx context.Context, since int64) ([]domain.DmEnvelope, error) {
	path := "/dm/fetch"
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var out messagesBody
	if _, err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// History returns the full envelope history of a conversation, both
// directions.
func (c *Client) History(ctx context.Context, peer domain.UserID) ([]domain.DmEnvelope, error) {
	var out messagesBody
	if _, err := c.getJSON(ctx, "/dm/history/"+strconv.FormatInt(int64(peer), 10), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func decodePublicKey(b64 string) (domain.X25519Public, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return domain.X25519Public{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	if len(raw) != 32 {
		return domain.X25519Public{}, fmt.Errorf("%w: want 32 bytes, got %d", domain.ErrInvalidKey, len(raw))
	}
	return domain.MustX25519Public(raw), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// getJSON decodes a 2xx response into out. A 404 returns found=false with
// no error; other non-2xx statuses are errors.
func (c *Client) getJSON(ctx context.Context, path string, out any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return true, json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that Client implements domain.DeliveryClient.
var _ domain.DeliveryClient = (*Client)(nil)
