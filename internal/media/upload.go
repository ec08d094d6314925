package media

import (
	"context"
	"time"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/progress"
)

// Upload is a transfer of one blob that reports progress and, once done, the URL
// the published item should play from.
type Upload interface {
	progress.Task
	URL(ctx context.Context) (string, error)
}

// SimulatedUploader fakes uploads with a timer. The resulting URL is the blob's
// temporary reference.
type SimulatedUploader struct {
	Interval time.Duration
	Step     func() float64
}

// Prepare returns a simulated upload of blob.
func (u SimulatedUploader) Prepare(blob Blob) Upload {
	return &simulatedUpload{
		Simulated: progress.Simulated{Interval: u.Interval, Step: u.Step},
		ref:       blob.Ref,
	}
}

type simulatedUpload struct {
	progress.Simulated
	ref string
}

func (s *simulatedUpload) URL(context.Context) (string, error) {
	return s.ref, nil
}
