package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("media: host credentials not configured")
	ErrRemote        = errors.New("media: remote host error")
)

// Config holds the media host account settings.
type Config struct {
	CloudName    string        `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey       string        `env:"CLOUDINARY_API_KEY"`
	APISecret    string        `env:"CLOUDINARY_API_SECRET"`
	UploadPreset string        `env:"CLOUDINARY_UPLOAD_PRESET"` // unsigned upload preset
	Folder       string        `env:"CLOUDINARY_FOLDER"`        // default "mute-magazine"
	APIBase      string        `env:"CLOUDINARY_API_BASE"`      // default "https://api.cloudinary.com"
	DeliveryHost string        `env:"CLOUDINARY_DELIVERY_HOST"` // default "res.cloudinary.com"
	RateLimit    float64       `env:"CLOUDINARY_RATE_LIMIT"`    // requests per second, 0 is unlimited
	Timeout      time.Duration `env:"CLOUDINARY_TIMEOUT"`       // default 30s
}

func (c *Config) setDefaults() {
	if c.Folder == "" {
		c.Folder = "mute-magazine"
	}
	if c.APIBase == "" {
		c.APIBase = "https://api.cloudinary.com"
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	if c.DeliveryHost == "" {
		c.DeliveryHost = "res.cloudinary.com"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Cloudinary is a Gateway backed by the Cloudinary upload API.
type Cloudinary struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// CloudinaryOption configures a Cloudinary gateway.
type CloudinaryOption func(*Cloudinary)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) CloudinaryOption {
	return func(c *Cloudinary) {
		c.client = client
	}
}

// WithLogger sets the logger for destroy outcomes.
func WithLogger(logger *slog.Logger) CloudinaryOption {
	return func(c *Cloudinary) {
		c.logger = logger
	}
}

// WithClock sets the time source for signature timestamps.
func WithClock(now func() time.Time) CloudinaryOption {
	return func(c *Cloudinary) {
		c.now = now
	}
}

// NewCloudinary returns a gateway for the account in cfg.
func NewCloudinary(cfg Config, opts ...CloudinaryOption) *Cloudinary {
	cfg.setDefaults()

	limit, burst := rate.Inf, 1
	if cfg.RateLimit > 0 {
		limit, burst = rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit))
	}

	c := &Cloudinary{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognizes reports whether rawURL is a delivery URL of the configured host.
func (c *Cloudinary) Recognizes(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Hostname(), c.cfg.DeliveryHost) && strings.Contains(u.Path, "/upload/")
}

type uploadResponse struct {
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Bytes        int64  `json:"bytes"`
}

// Upload validates f and sends it to the host with the unsigned preset.
func (c *Cloudinary) Upload(ctx context.Context, f File) (Upload, error) {
	if err := Validate(f); err != nil {
		return Upload{}, err
	}
	if c.cfg.CloudName == "" || c.cfg.UploadPreset == "" {
		return Upload{}, ErrNotConfigured
	}

	name := f.Name
	if name == "" {
		name = "upload"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return Upload{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return Upload{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := w.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return Upload{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := w.WriteField("folder", c.cfg.Folder); err != nil {
		return Upload{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return Upload{}, fmt.Errorf("build upload form: %w", err)
	}

	kind := f.Kind()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind, "upload"), &body)
	if err != nil {
		return Upload{}, fmt.Errorf("upload %s: %w", name, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var res uploadResponse
	if err := c.do(req, &res); err != nil {
		return Upload{}, fmt.Errorf("upload %s: %w", name, err)
	}
	if res.SecureURL == "" || res.PublicID == "" {
		return Upload{}, fmt.Errorf("upload %s: %w: response without url", name, ErrRemote)
	}

	rt := ResourceType(res.ResourceType)
	if rt == "" {
		rt = kind
	}
	return Upload{
		URL:          res.SecureURL,
		PublicID:     res.PublicID,
		Format:       res.Format,
		ResourceType: rt,
		Width:        res.Width,
		Height:       res.Height,
		Bytes:        res.Bytes,
	}, nil
}

// Delete destroys the object behind a delivery URL. URLs that are not hosted
// media are skipped without a network call.
func (c *Cloudinary) Delete(ctx context.Context, rawURL string) (bool, error) {
	if !c.Recognizes(rawURL) {
		return false, nil
	}
	ref, ok := ParseRef(rawURL)
	if !ok {
		return false, nil
	}
	return c.Destroy(ctx, ref)
}

// Destroy deletes one object with a signed request. A "not found" result is
// a success.
func (c *Cloudinary) Destroy(ctx context.Context, ref Ref) (bool, error) {
	if ref.PublicID == "" {
		return false, fmt.Errorf("destroy: empty public id")
	}
	if c.cfg.CloudName == "" || c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return false, ErrNotConfigured
	}
	rt := ref.ResourceType
	if rt == "" {
		rt = Image
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"public_id": ref.PublicID,
		"timestamp": timestamp,
	}
	form := url.Values{
		"public_id": {ref.PublicID},
		"timestamp": {timestamp},
		"api_key":   {c.cfg.APIKey},
		"signature": {Sign(params, c.cfg.APISecret)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(rt, "destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("destroy %s: %w", ref.PublicID, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var res struct {
		Result string `json:"result"`
	}
	if err := c.do(req, &res); err != nil {
		return false, fmt.Errorf("destroy %s: %w", ref.PublicID, err)
	}

	switch res.Result {
	case "ok", "not found":
		c.logger.Debug("media destroyed", "public_id", ref.PublicID, "resource_type", rt, "result", res.Result)
		return true, nil
	default:
		return false, fmt.Errorf("destroy %s: %w: result %q", ref.PublicID, ErrRemote, res.Result)
	}
}

func (c *Cloudinary) endpoint(rt ResourceType, action string) string {
	return c.cfg.APIBase + "/v1_1/" + url.PathEscape(c.cfg.CloudName) + "/" + string(rt) + "/" + action
}

// do waits for the limiter, sends req and decodes a JSON response into out.
func (c *Cloudinary) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrRemote, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %d %s", ErrRemote, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemote, err)
	}
	return nil
}
