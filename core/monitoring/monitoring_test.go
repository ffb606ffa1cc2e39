package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	errs []error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureException(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(nil)
	CaptureException(nil, nil)
	CaptureException(errors.New("routing down"), map[string]string{"module": "dispatch"})
	assert.Len(t, rec.errs, 1)
	assert.Equal(t, "dispatch", rec.tags["module"])
}

func TestInitNilResets(t *testing.T) {
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
}
