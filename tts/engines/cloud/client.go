// Package cloud implements the remote synthesis service client. It speaks
// the Cloud Text-to-Speech v1beta1 REST API and asks for SSML mark
// timepoints so that highlights can follow the audio.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/ssml"
	"golang.org/x/time/rate"
)

// incapableVoices are name fragments of voice families that ignore SSML
// marks.
var incapableVoices = []string{"journey", "chirp", "polyglot"}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Cache is the result cache consulted before any request.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Client synthesizes SSML through the remote service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	timeout    time.Duration

	limiter *rate.Limiter
	quota   *Quota
	cache   Cache
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithQuota sets the usage ledger checked before and charged after every
// request.
func WithQuota(q *Quota) Option {
	return func(cl *Client) {
		cl.quota = q
	}
}

// WithCache sets the result cache.
func WithCache(c Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(l *rate.Limiter) Option {
	return func(cl *Client) {
		cl.limiter = l
	}
}

// New creates a client from the remote synthesis configuration.
func New(cfg tts.CloudConfig, opts ...Option) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = tts.DefaultCloudConfig().RequestsPerMinute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = tts.DefaultCloudConfig().Timeout
	}

	c := &Client{
		httpClient: http.DefaultClient,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SupportsMarkers reports whether the named voice honours SSML marks.
func (c *Client) SupportsMarkers(voiceName string) bool {
	return SupportsMarkers(voiceName)
}

// SupportsMarkers reports whether voices with this name honour SSML marks.
func SupportsMarkers(voiceName string) bool {
	name := strings.ToLower(voiceName)
	for _, frag := range incapableVoices {
		if strings.Contains(name, frag) {
			return false
		}
	}
	return true
}

type synthesizeRequest struct {
	Input              synthesisInput `json:"input"`
	Voice              voiceSelection `json:"voice"`
	AudioConfig        audioConfig    `json:"audioConfig"`
	EnableTimePointing []string       `json:"enableTimePointing,omitempty"`
}

type synthesisInput struct {
	SSML string `json:"ssml"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SpeakingRate    float64 `json:"speakingRate,omitempty"`
	Pitch           float64 `json:"pitch,omitempty"`
	VolumeGainDB    float64 `json:"volumeGainDb,omitempty"`
	SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
}

type synthesizeResponse struct {
	AudioContent []byte      `json:"audioContent"`
	Timepoints   []timepoint `json:"timepoints"`
}

type timepoint struct {
	MarkName    string  `json:"markName"`
	TimeSeconds float64 `json:"timeSeconds"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize renders markup with the given voice. Failures are
// *tts.TTSError values matching tts.ErrQuotaExceeded, tts.ErrAuth,
// tts.ErrTimeout or tts.ErrService. Usage is charged only after a
// successful response.
func (c *Client) Synthesize(ctx context.Context, markup string, voice tts.VoiceConfig) (*tts.SynthesisResult, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, tts.NewTTSError(tts.CodeInvalidInput, "markup is empty", tts.ErrEmptyMarkup)
	}
	if voice.Encoding == "" {
		voice.Encoding = tts.EncodingMP3
	}

	key := cacheKey(markup, voice)
	if res, ok := c.cached(key); ok {
		c.logger.Debug("synthesis cache hit", "key", key[:12])
		return res, nil
	}

	chars := ssml.Characters(markup)
	if c.quota != nil {
		if err := c.quota.Check(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.contextError(ctx, "waiting for rate limiter", err)
	}

	body, err := json.Marshal(synthesizeRequest{
		Input: synthesisInput{SSML: markup},
		Voice: voiceSelection{LanguageCode: voice.LanguageCode, Name: voice.Name},
		AudioConfig: audioConfig{
			AudioEncoding:   string(voice.Encoding),
			SpeakingRate:    voice.SpeakingRate,
			Pitch:           voice.Pitch,
			VolumeGainDB:    voice.VolumeGainDB,
			SampleRateHertz: voice.SampleRateHertz,
		},
		EnableTimePointing: []string{"SSML_MARK"},
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	var resp synthesizeResponse
	start := time.Now()
	if err := c.do(ctx, http.MethodPost, "/text:synthesize", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("synthesized", "chars", chars, "voice", voice.Name,
		"timepoints", len(resp.Timepoints), "elapsed", time.Since(start))

	result := &tts.SynthesisResult{
		Audio:      resp.AudioContent,
		Encoding:   voice.Encoding,
		SampleRate: voice.SampleRateHertz,
		Characters: chars,
	}
	for _, tp := range resp.Timepoints {
		result.Timings = append(result.Timings, tts.TimingEntry{MarkerName: tp.MarkName, Offset: tp.TimeSeconds})
	}
	tts.SortTimings(result.Timings)

	if c.quota != nil {
		if err := c.quota.Charge(chars); err != nil {
			c.logger.Warn("could not persist usage", "error", err)
		}
	}
	c.store(key, result)

	return result, nil
}

// do sends a request and decodes a JSON response into out, mapping failures
// to typed errors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return tts.NewTTSError(tts.CodeService, "could not build request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.contextError(ctx, "request failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.contextError(ctx, "could not decode response", err)
	}
	return nil
}

// contextError maps an error that happened under ctx to a timeout when the
// deadline passed, and to a service error otherwise. Cancellation by the
// caller is returned as is.
func (c *Client) contextError(ctx context.Context, msg string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return tts.NewTTSError(tts.CodeTimeout, msg, err).
			WithContext("timeout", c.timeout.String())
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	default:
		return tts.NewTTSError(tts.CodeService, msg, err)
	}
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := http.StatusText(resp.StatusCode)
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	var code tts.ErrorCode
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = tts.CodeAuth
	case http.StatusTooManyRequests:
		code = tts.CodeQuotaExceeded
	default:
		code = tts.CodeService
	}
	return tts.NewTTSError(code, msg, nil).WithContext("status", resp.StatusCode)
}

func cacheKey(markup string, v tts.VoiceConfig) string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 2, 64) }
	return cache.Key(markup, v.LanguageCode, v.Name, f(v.SpeakingRate), f(v.Pitch),
		f(v.VolumeGainDB), string(v.Encoding), strconv.Itoa(v.SampleRateHertz))
}

func (c *Client) cached(key string) (*tts.SynthesisResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	var res tts.SynthesisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "error", err)
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (c *Client) store(key string, res *tts.SynthesisResult) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.cache.Put(key, raw); err != nil {
		c.logger.Debug("could not cache synthesis result", "error", err)
	}
}
