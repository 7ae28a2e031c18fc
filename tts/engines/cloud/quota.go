package cloud

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"gopkg.in/yaml.v3"
)

const periodLayout = "2006-01"

// Usage is the persisted monthly usage record.
type Usage struct {
	Period     string    `yaml:"period"`
	Characters int       `yaml:"characters"`
	Requests   int       `yaml:"requests"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// Quota tracks billable characters against a monthly ceiling. The ledger
// is a YAML file; an empty path keeps usage in memory only.
type Quota struct {
	mu      sync.Mutex
	path    string
	ceiling int
	usage   Usage
	now     func() time.Time
}

// QuotaOption configures a Quota.
type QuotaOption func(*Quota)

// WithClock sets the time source used for period rollover.
func WithClock(now func() time.Time) QuotaOption {
	return func(q *Quota) {
		q.now = now
	}
}

// NewQuota opens the ledger at path. A ceiling of zero disables the check.
func NewQuota(path string, ceiling int, opts ...QuotaOption) (*Quota, error) {
	q := &Quota{
		path:    path,
		ceiling: ceiling,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &q.usage); err != nil {
				return nil, fmt.Errorf("error parsing usage ledger %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("error reading usage ledger: %w", err)
		}
	}
	q.rollover()
	return q, nil
}

// Check fails with a quota error when usage has reached the ceiling.
func (q *Quota) Check() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.ceiling > 0 && q.usage.Characters >= q.ceiling {
		return tts.NewTTSError(tts.CodeQuotaExceeded, "monthly character quota reached", nil).
			WithContext("used", q.usage.Characters).
			WithContext("ceiling", q.ceiling)
	}
	return nil
}

// Charge records a successful request of n characters and persists the
// ledger.
func (q *Quota) Charge(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	q.usage.Characters += n
	q.usage.Requests++
	q.usage.UpdatedAt = q.now()
	return q.save()
}

// Usage returns the usage of the current period.
func (q *Quota) Usage() Usage {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.usage
}

// Ceiling returns the monthly character ceiling.
func (q *Quota) Ceiling() int {
	return q.ceiling
}

// Remaining returns the characters left this period, or -1 when unlimited.
func (q *Quota) Remaining() int {
	if q.ceiling <= 0 {
		return -1
	}
	u := q.Usage()
	if u.Characters >= q.ceiling {
		return 0
	}
	return q.ceiling - u.Characters
}

// Reset zeroes the current period.
func (q *Quota) Reset() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.usage = Usage{Period: q.now().Format(periodLayout), UpdatedAt: q.now()}
	return q.save()
}

// rollover starts a new period when the month changed. Must hold mu or be
// called before q is shared.
func (q *Quota) rollover() {
	period := q.now().Format(periodLayout)
	if q.usage.Period != period {
		q.usage = Usage{Period: period}
	}
}

func (q *Quota) save() error {
	if q.path == "" {
		return nil
	}
	data, err := yaml.Marshal(q.usage)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}
