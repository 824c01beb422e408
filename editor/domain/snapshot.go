package domain

import "time"

// FailureMessage is the only error text a user ever sees for a failed
// transformation, whatever the underlying cause.
const FailureMessage = "Something went wrong while processing. Please try again."

// Locator is a displayable reference to a stored image (a URL path).
type Locator string

// View names what the presentation layer should show for a snapshot.
type View string

const (
	ViewUpload  View = "upload"
	ViewPreview View = "preview"
	ViewResult  View = "result"
)

// Snapshot is one immutable point of the edit history.
// Snapshots are passed and stored by value; the With* helpers return
// modified copies and never touch the receiver.
type Snapshot struct {
	Source  AssetRef
	Preview Locator
	Output  AssetRef
	Result  Locator
	Failure string

	CreatedAt time.Time
}

// EmptySnapshot returns the snapshot with no source, preview, result or failure.
func EmptySnapshot() Snapshot {
	return Snapshot{}
}

// NewSourceSnapshot returns a snapshot for a freshly selected asset.
func NewSourceSnapshot(source AssetRef, preview Locator, at time.Time) Snapshot {
	return Snapshot{
		Source:    source,
		Preview:   preview,
		CreatedAt: at,
	}
}

// IsEmpty reports whether the snapshot has no source asset.
func (s Snapshot) IsEmpty() bool {
	return s.Source.IsZero()
}

// CanProcess reports whether a transformation can be started from s.
func (s Snapshot) CanProcess() bool {
	return !s.Source.IsZero() && s.Preview != ""
}

// HasResult reports whether s carries a transformed output.
func (s Snapshot) HasResult() bool {
	return s.Result != ""
}

// WithResult returns a copy of s with the given output and no failure.
func (s Snapshot) WithResult(output AssetRef, result Locator, at time.Time) Snapshot {
	s.Output = output
	s.Result = result
	s.Failure = ""
	s.CreatedAt = at
	return s
}

// WithFailure returns a copy of s carrying msg. The result is left as it was.
func (s Snapshot) WithFailure(msg string, at time.Time) Snapshot {
	s.Failure = msg
	s.CreatedAt = at
	return s
}

// View returns the presentation step matching the snapshot.
func (s Snapshot) View() View {
	switch {
	case s.Preview == "":
		return ViewUpload
	case s.Result == "":
		return ViewPreview
	default:
		return ViewResult
	}
}
