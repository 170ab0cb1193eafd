package progress

import (
	"time"
)

var maxBucketDuration = 1 * time.Second

// Counter keeps track of the completion of a task and estimates
// its throughput (when the total size is known) and time left.
type Counter struct {
	lastBandwidthUpdate time.Time
	lastBandwidthAlpha  float64
	bps                 float64
	totalBytes          int64
	alpha               float64
	startedAt           time.Time
	now                 func() time.Time
}

func NewCounter() *Counter {
	return &Counter{
		now: time.Now,
	}
}

func (c *Counter) SetTotalBytes(totalBytes int64) {
	c.totalBytes = totalBytes
}

func (c *Counter) TotalBytes() int64 {
	return c.totalBytes
}

func (c *Counter) Start() {
	c.startedAt = c.now()
}

func (c *Counter) SetProgress(alpha float64) {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	if c.totalBytes > 0 {
		if c.lastBandwidthUpdate.IsZero() {
			c.lastBandwidthUpdate = c.now()
			c.lastBandwidthAlpha = alpha
		}
		bucketDuration := c.now().Sub(c.lastBandwidthUpdate)

		if bucketDuration > maxBucketDuration {
			bytesSinceLastUpdate := float64(c.totalBytes) * (alpha - c.lastBandwidthAlpha)
			c.bps = bytesSinceLastUpdate / bucketDuration.Seconds()
			c.lastBandwidthUpdate = c.now()
			c.lastBandwidthAlpha = alpha
		}
		// otherwise, keep current bps value
	} else {
		c.bps = 0
	}

	c.alpha = alpha
}

func (c *Counter) Progress() float64 {
	return c.alpha
}

// ETA returns an estimate of the time left, or 0 if it can't be estimated yet
func (c *Counter) ETA() time.Duration {
	if c.startedAt.IsZero() || c.alpha <= 0 {
		return 0
	}

	elapsed := c.now().Sub(c.startedAt)
	total := time.Duration(float64(elapsed) / c.alpha)
	return total - elapsed
}

// BPS returns the estimated bytes per second, 0 if the total size is unknown
func (c *Counter) BPS() float64 {
	return c.bps
}
