package port

import "context"

// FailureNotice describes an export that failed permanently.
type FailureNotice struct {
	UserEmail string
	JobID     string
	VideoKey  string
	Attempts  int
	Reason    string
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}
