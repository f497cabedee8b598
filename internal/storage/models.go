package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned when a record fails validation before it is written.
var ErrInvalid = errors.New("invalid record")

// ErrConflict is returned when a write would duplicate a unique key.
var ErrConflict = errors.New("conflict")

// Outcomes of a call flow execution.
const (
	OutcomePass    = "pass"
	OutcomeFail    = "fail"
	OutcomeBlocked = "blocked"
)

// Upload is a call-trace or capture file stored on disk.
type Upload struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StoredPath  string    `json:"-"`
	Description string    `json:"description"`
	Preview     string    `json:"preview,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CallFlow is a test definition: who calls whom and what should happen.
type CallFlow struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CallingNumber  string    `json:"callingNumber"`
	CalledNumber   string    `json:"calledNumber"`
	ExpectedResult string    `json:"expectedResult"`
	Steps          []string  `json:"steps"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CMSSpace is the local mirror of a CMS coSpace.
type CMSSpace struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	URI      string    `json:"uri"`
	CallID   string    `json:"callId"`
	Passcode string    `json:"passcode,omitempty"`
	OwnerJID string    `json:"ownerJid,omitempty"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Result records one execution of a call flow.
type Result struct {
	ID         string    `json:"id"`
	CallFlowID string    `json:"callFlowId"`
	UploadID   string    `json:"uploadId,omitempty"`
	Outcome    string    `json:"outcome"`
	Notes      string    `json:"notes"`
	ExecutedBy string    `json:"executedBy"`
	ExecutedAt time.Time `json:"executedAt"`
}

// Location is a site the lab covers.
type Location struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SiteCode   string    `json:"siteCode"`
	Address    string    `json:"address"`
	Timezone   string    `json:"timezone"`
	DevicePool string    `json:"devicePool"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"payload"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	RunAfter    time.Time `json:"runAfter"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastError   string    `json:"lastError,omitempty"`
}
