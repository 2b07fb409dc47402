package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// ErrNoDelivery is returned when nothing was sent for a date
var ErrNoDelivery = errors.New("no delivery recorded")

// Delivery records one daily digest send
type Delivery struct {
	Date      string    `json:"date"`
	MessageID string    `json:"message_id"`
	Article   string    `json:"article"`
	URL       string    `json:"url"`
	Recipient string    `json:"recipient"`
	Provider  string    `json:"provider"`
	SentAt    time.Time `json:"sent_at"`
}

// DeliveryLog keeps one JSON file per UTC date so a retried cron trigger
// does not send the same digest twice.
type DeliveryLog struct {
	baseDir string
	mu      sync.RWMutex
}

// NewDeliveryLog creates a new file-based delivery log
func NewDeliveryLog(baseDir string) (*DeliveryLog, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create delivery directory: %w", err)
	}
	return &DeliveryLog{
		baseDir: baseDir,
	}, nil
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func (l *DeliveryLog) path(date string) (string, error) {
	if !datePattern.MatchString(date) {
		return "", fmt.Errorf("invalid delivery date %q", date)
	}
	return filepath.Join(l.baseDir, date+".json"), nil
}

// Record writes the delivery, replacing any earlier record for the date.
func (l *DeliveryLog) Record(d Delivery) error {
	path, err := l.path(d.Date)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit delivery: %w", err)
	}
	return nil
}

// Get returns the delivery recorded for date, or ErrNoDelivery.
func (l *DeliveryLog) Get(date string) (*Delivery, error) {
	path, err := l.path(date)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDelivery
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var d Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery: %w", err)
	}
	return &d, nil
}
