package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"dorm-assignment-backend/internal/model"
	"dorm-assignment-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// fakeStore keeps subscriptions in memory.
type fakeStore struct {
	mu      sync.Mutex
	people  map[int64]model.Person
	subs    map[int64][]model.PushSubscription
	deleted []string
}

func (f *fakeStore) GetPerson(_ context.Context, id int64) (model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.people[id]
	if !ok {
		return model.Person{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SubscriptionsForPerson(_ context.Context, id int64) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id], nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeStore) deletedEndpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &fakeStore{}, &webpush.Options{}, zaptest.NewLogger(t))

	require.True(t, wp.Dispatch(context.Background(), Job{PersonID: 123}))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job.PersonID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}

	t.Run("gives up when context is done", func(t *testing.T) {
		full := NewWorkerPool(1, &fakeStore{}, &webpush.Options{}, zaptest.NewLogger(t))
		for len(full.jobs) < cap(full.jobs) {
			full.jobs <- Job{}
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, full.Dispatch(ctx, Job{PersonID: 1}))
	})
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeStore{
		people: map[int64]model.Person{
			101: {ID: 101, FirstName: "Dana", LastName: "Levi"},
		},
		subs: map[int64][]model.PushSubscription{
			101: {{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"}},
			102: {{Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a"}},
		},
	}
	wp := NewWorkerPool(1, fs, &webpush.Options{}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)
	defer func() {
		cancel()
		wp.Wait()
	}()

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, "Dana Levi has been assigned to Dorm A, room 3", string(payload))
				return okResponse(http.StatusCreated), nil
			},
		}

		wp.Dispatch(ctx, Job{PersonID: 101, DormName: "Dorm A", RoomNumber: 3})
		wg.Wait()
		assert.Empty(t, fs.deletedEndpoints())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				// Unknown person falls back to the numeric label.
				assert.Equal(t, "#102 has been assigned to Dorm B, room 1", string(payload))
				return okResponse(http.StatusGone), nil
			},
		}

		wp.Dispatch(ctx, Job{PersonID: 102, DormName: "Dorm B", RoomNumber: 1})
		wg.Wait()

		assert.Eventually(t, func() bool {
			return len(fs.deletedEndpoints()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"https://example.com/expired"}, fs.deletedEndpoints())
	})
}
