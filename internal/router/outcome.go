package router

import "fmt"

// Kind classifies how a delivery was handled.
type Kind string

const (
	KindRecorded        Kind = "recorded"
	KindRejected        Kind = "rejected"
	KindIgnored         Kind = "ignored"
	KindCommandExecuted Kind = "command_executed"
	KindFailed          Kind = "failed"
)

// Reason qualifies Rejected, Ignored and Failed outcomes.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonUnsupportedType      Reason = "unsupported_type"
	ReasonEmptyBody            Reason = "empty_body"
	ReasonMediaDownloadFailure Reason = "media_download_failure"
	ReasonRedelivered          Reason = "redelivered"
)

// Outcome is the result of routing one delivery.
type Outcome struct {
	Kind   Kind
	Reason Reason

	// Set for KindRecorded.
	ClaimID     string
	InstanceID  string
	WasNewClaim bool

	// Err is the scoped failure behind a KindFailed outcome.
	Err error
}

func recorded(claimID, instanceID string, wasNew bool) Outcome {
	return Outcome{Kind: KindRecorded, ClaimID: claimID, InstanceID: instanceID, WasNewClaim: wasNew}
}

func rejected(reason Reason) Outcome { return Outcome{Kind: KindRejected, Reason: reason} }

func ignored(reason Reason) Outcome { return Outcome{Kind: KindIgnored, Reason: reason} }

func failed(reason Reason, err error) Outcome {
	return Outcome{Kind: KindFailed, Reason: reason, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindRecorded:
		return fmt.Sprintf("recorded(claim=%s, instance=%s, new=%t)", o.ClaimID, o.InstanceID, o.WasNewClaim)
	case KindRejected, KindIgnored, KindFailed:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	default:
		return string(o.Kind)
	}
}
