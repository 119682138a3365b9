package api

import "sync/atomic"

// Stats counts webhook and audio outcomes. It implements
// metrics.PipelineStatsProvider.
type Stats struct {
	calls         atomic.Uint64
	synthFailed   atomic.Uint64
	storeFailed   atomic.Uint64
	internalFail  atomic.Uint64
	audioServed   atomic.Uint64
	audioNotFound atomic.Uint64
}

func (s *Stats) recordFailure(kind failureKind) {
	switch kind {
	case failSynthesis:
		s.synthFailed.Add(1)
	case failStorage:
		s.storeFailed.Add(1)
	default:
		s.internalFail.Add(1)
	}
}

// CallsTotal returns the number of voice webhooks handled.
func (s *Stats) CallsTotal() uint64 { return s.calls.Load() }

// CallsFailed returns the number of voice webhooks that failed with kind
// ("synthesis", "storage" or "internal").
func (s *Stats) CallsFailed(kind string) uint64 {
	switch kind {
	case failSynthesis.String():
		return s.synthFailed.Load()
	case failStorage.String():
		return s.storeFailed.Load()
	case failInternal.String():
		return s.internalFail.Load()
	}
	return 0
}

// AudioServed returns the number of audio files streamed.
func (s *Stats) AudioServed() uint64 { return s.audioServed.Load() }

// AudioNotFound returns the number of audio requests answered with 404.
func (s *Stats) AudioNotFound() uint64 { return s.audioNotFound.Load() }
