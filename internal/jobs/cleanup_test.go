package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gfd-sse/off2on-bridge-go/internal/model"
)

type mockMappingRepo struct {
	clearedCount int64
	calls        atomic.Int64
}

func (m *mockMappingRepo) FindByPendingOTP(ctx context.Context, otp int64) (*model.DeviceMapping, error) {
	return nil, nil
}

func (m *mockMappingRepo) FindByDestinationID(ctx context.Context, destinationID string) (*model.DeviceMapping, error) {
	return nil, nil
}

func (m *mockMappingRepo) FindBySourceID(ctx context.Context, sourceID string) (*model.DeviceMapping, error) {
	return nil, nil
}

func (m *mockMappingRepo) Activate(ctx context.Context, otp int64, destinationID string) (*model.DeviceMapping, error) {
	return nil, nil
}

func (m *mockMappingRepo) SetActive(ctx context.Context, id string, active bool) error {
	return nil
}

func (m *mockMappingRepo) UpsertPendingOTP(ctx context.Context, sourceID string, otp int64, expiresAt time.Time) (*model.DeviceMapping, error) {
	return nil, nil
}

func (m *mockMappingRepo) OTPExists(ctx context.Context, otp int64) (bool, error) {
	return false, nil
}

func (m *mockMappingRepo) ClearExpiredOTPs(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.clearedCount, nil
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(nil, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs cleanup immediately on start", func(t *testing.T) {
		repo := &mockMappingRepo{clearedCount: 3}
		job := NewCleanupJob(repo, time.Hour)

		job.Start()
		time.Sleep(20 * time.Millisecond)
		job.Stop()

		assert.GreaterOrEqual(t, repo.calls.Load(), int64(1))
	})

	t.Run("runs cleanup on each tick", func(t *testing.T) {
		repo := &mockMappingRepo{}
		job := NewCleanupJob(repo, 20*time.Millisecond)

		job.Start()
		time.Sleep(70 * time.Millisecond)
		job.Stop()

		assert.GreaterOrEqual(t, repo.calls.Load(), int64(2))
	})
}
