// Package workflow chains vendor calls into the portal's composite
// operations.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/ucportal/internal/axl"
	"github.com/kalambet/ucportal/internal/cupi"
	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/uds"
)

// Step names, in execution order.
const (
	StepLookup  = "uds_lookup"
	StepMailbox = "cupi_mailbox"
	StepPIN     = "cupi_pin"
	StepLine    = "axl_line"
)

// Directory looks up users in the CUCM directory.
type Directory interface {
	GetUser(ctx context.Context, userID string) (uds.User, error)
}

// Mailboxes provisions Unity Connection users.
type Mailboxes interface {
	FindUserByAlias(ctx context.Context, alias string) (cupi.User, bool, error)
	CreateUser(ctx context.Context, templateAlias string, u cupi.User) (string, error)
	SetPIN(ctx context.Context, objectID, pin string) error
}

// Lines updates CUCM directory numbers.
type Lines interface {
	UpdateLine(ctx context.Context, pattern, partition string, u axl.LineUpdate) (string, error)
}

// VoicemailOptions control Voicemail.Enable. Zero values fall back to the
// Voicemail defaults.
type VoicemailOptions struct {
	Template  string `json:"template,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Partition string `json:"partition,omitempty"`
	PIN       string `json:"pin,omitempty"`
}

// StepResult records one completed step.
type StepResult struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// VoicemailResult is what Voicemail.Enable did.
type VoicemailResult struct {
	UserID    string       `json:"userid"`
	Extension string       `json:"extension"`
	MailboxID string       `json:"mailboxId"`
	Existing  bool         `json:"existing"`
	LineUUID  string       `json:"lineUuid,omitempty"`
	Steps     []StepResult `json:"steps"`
}

// StepError reports which step of a composite operation failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Voicemail enables voicemail for CUCM users.
type Voicemail struct {
	Directory Directory
	Mailboxes Mailboxes
	Lines     Lines
	Defaults  VoicemailOptions
	Logger    *slog.Logger
}

// Enable looks the user up in UDS, creates (or reuses) their Unity
// Connection mailbox and points their primary line at the voicemail profile.
// It stops at the first failing step; the returned result holds the steps
// completed before it.
func (v *Voicemail) Enable(ctx context.Context, userID string, opts VoicemailOptions) (VoicemailResult, error) {
	if userID == "" {
		return VoicemailResult{}, envelope.Invalid("userid is required")
	}
	opts = v.merge(opts)
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := VoicemailResult{UserID: userID, Steps: []StepResult{}}
	fail := func(step string, err error) (VoicemailResult, error) {
		logger.Warn("enable voicemail aborted", "userid", userID, "step", step, "error", err)
		return res, &StepError{Step: step, Err: err}
	}

	// Settings are checked before the first vendor call so a bad
	// configuration never leaves a half-provisioned mailbox behind.
	if opts.Profile == "" {
		return fail(StepLine, envelope.Invalid("no voicemail profile configured"))
	}

	user, err := v.Directory.GetUser(ctx, userID)
	if err != nil {
		return fail(StepLookup, err)
	}
	if user.PhoneNumber == "" {
		return fail(StepLookup, envelope.Invalid(fmt.Sprintf("user %s has no primary extension", userID)))
	}
	res.Extension = user.PhoneNumber
	res.Steps = append(res.Steps, StepResult{Step: StepLookup, Detail: "extension " + user.PhoneNumber})

	existing, found, err := v.Mailboxes.FindUserByAlias(ctx, userID)
	if err != nil {
		return fail(StepMailbox, err)
	}
	if found {
		res.MailboxID = existing.ObjectID
		res.Existing = true
		res.Steps = append(res.Steps, StepResult{Step: StepMailbox, Detail: "mailbox already exists"})
	} else {
		if opts.Template == "" {
			return fail(StepMailbox, envelope.Invalid("no user template configured"))
		}
		id, err := v.Mailboxes.CreateUser(ctx, opts.Template, cupi.User{
			Alias:        userID,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			DisplayName:  user.DisplayName,
			DtmfAccessID: user.PhoneNumber,
			EmailAddress: user.Email,
		})
		if err != nil {
			return fail(StepMailbox, err)
		}
		res.MailboxID = id
		res.Steps = append(res.Steps, StepResult{Step: StepMailbox, Detail: "created from template " + opts.Template})
	}

	if opts.PIN != "" {
		if err := v.Mailboxes.SetPIN(ctx, res.MailboxID, opts.PIN); err != nil {
			return fail(StepPIN, err)
		}
		res.Steps = append(res.Steps, StepResult{Step: StepPIN, Detail: "pin set"})
	}

	lineUUID, err := v.Lines.UpdateLine(ctx, user.PhoneNumber, opts.Partition, axl.LineUpdate{VoiceMailProfileName: opts.Profile})
	if err != nil {
		return fail(StepLine, err)
	}
	res.LineUUID = lineUUID
	res.Steps = append(res.Steps, StepResult{Step: StepLine, Detail: "voicemail profile " + opts.Profile})

	logger.Info("voicemail enabled", "userid", userID, "extension", res.Extension, "mailbox", res.MailboxID)
	return res, nil
}

func (v *Voicemail) merge(o VoicemailOptions) VoicemailOptions {
	if o.Template == "" {
		o.Template = v.Defaults.Template
	}
	if o.Profile == "" {
		o.Profile = v.Defaults.Profile
	}
	if o.Partition == "" {
		o.Partition = v.Defaults.Partition
	}
	return o
}
