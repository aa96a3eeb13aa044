package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icard-hq/apiserver/internal/idcard"
	"github.com/icard-hq/apiserver/internal/mq"
	"github.com/icard-hq/apiserver/internal/storage"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test" }

type memBroker struct {
	mu     sync.Mutex
	events []mq.Event
}

func (b *memBroker) Publish(_ context.Context, _ string, data []byte, _ map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var event mq.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	b.events = append(b.events, event)
	return "1", nil
}

func (b *memBroker) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (b *memBroker) Close() error                                        { return nil }

func (b *memBroker) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestCardService(t *testing.T) (*CardService, *fakeEmployeeRepo, *memObjectStorage, *fakeSender, *memBroker) {
	t.Helper()
	repo := newFakeEmployeeRepo()
	objects := newMemObjectStorage()
	sender := &fakeSender{}
	broker := &memBroker{}
	svc := NewCardService(
		repo,
		idcard.NewRenderer("Acme Corp"),
		storage.NewStorage(objects),
		sender,
		mq.NewPublisher(broker, "card-events"),
		"https://cards.example.com/",
		"test-secret",
		time.Hour,
	)
	return svc, repo, objects, sender, broker
}

func seedEmployee(t *testing.T, repo *fakeEmployeeRepo, name, email string) types.Employee {
	t.Helper()
	emp, err := repo.Create(context.Background(), types.Employee{
		Name:        name,
		Department:  "Engineering",
		Designation: "Engineer",
		Email:       email,
		Active:      true,
	})
	require.NoError(t, err)
	return emp
}

func TestGeneratePDFStoresAndMarksPrinted(t *testing.T) {
	svc, repo, objects, _, broker := newTestCardService(t)
	emp := seedEmployee(t, repo, "Ravi Kumar", "ravi@example.com")

	pdf, err := svc.GeneratePDF(context.Background(), emp.ID, 1)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	stored, err := repo.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.True(t, stored.Printed)

	obj, ok := objects.objects[storage.CardKey(emp.ID)]
	require.True(t, ok, "rendered card must be persisted")
	assert.Equal(t, pdf, obj)

	assert.Equal(t, []string{mq.EventCardGenerated}, broker.eventTypes())
}

func TestGeneratePDFUnknownEmployee(t *testing.T) {
	svc, _, _, _, broker := newTestCardService(t)
	_, err := svc.GeneratePDF(context.Background(), 404, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, broker.eventTypes())
}

func TestEmailCard(t *testing.T) {
	svc, repo, _, sender, broker := newTestCardService(t)
	emp := seedEmployee(t, repo, "Ravi Kumar", "ravi@example.com")

	require.NoError(t, svc.EmailCard(context.Background(), emp.ID, 1))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "ravi@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "Ravi Kumar")
	assert.Contains(t, sender.sent[0].body, "https://cards.example.com/cards/download?token=")

	stored, err := repo.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.True(t, stored.Mailed)
	assert.Equal(t, []string{mq.EventCardMailed}, broker.eventTypes())
}

func TestEmailCardWithoutAddress(t *testing.T) {
	svc, repo, _, sender, _ := newTestCardService(t)
	emp := seedEmployee(t, repo, "No Mail", "")

	err := svc.EmailCard(context.Background(), emp.ID, 1)
	assert.ErrorIs(t, err, ErrNoEmail)
	assert.Equal(t, 0, sender.count())

	stored, err := repo.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.False(t, stored.Mailed)
}

func TestEmailCardDeliveryFailureLeavesFlagUnset(t *testing.T) {
	svc, repo, _, sender, broker := newTestCardService(t)
	emp := seedEmployee(t, repo, "Ravi Kumar", "ravi@example.com")
	sender.fail = true

	err := svc.EmailCard(context.Background(), emp.ID, 1)
	require.Error(t, err)

	stored, err := repo.Get(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.False(t, stored.Mailed, "a failed send must not claim the card was mailed")
	assert.Empty(t, broker.eventTypes())
}

func TestBulkGenerateContinuesOnFailure(t *testing.T) {
	svc, repo, _, sender, _ := newTestCardService(t)
	a := seedEmployee(t, repo, "A", "a@example.com")
	b := seedEmployee(t, repo, "B", "")
	c := seedEmployee(t, repo, "C", "c@example.com")

	result := svc.BulkGenerate(context.Background(), []int{a.ID, 999, b.ID, c.ID}, true, 1)

	assert.Equal(t, 3, result.Generated, "the unknown id must not stop the run")
	assert.Equal(t, 2, result.Emailed, "the employee without email is reported, not fatal")
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 2, sender.count())
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	svc, repo, _, _, _ := newTestCardService(t)
	emp := seedEmployee(t, repo, "Ravi Kumar", "ravi@example.com")

	link, err := svc.DownloadLink(emp.ID)
	require.NoError(t, err)
	prefix := "https://cards.example.com/cards/download?token="
	require.True(t, len(link) > len(prefix))
	token := link[len(prefix):]

	id, err := svc.VerifyDownloadToken(token)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, id)

	_, err = svc.VerifyDownloadToken(token + "tampered")
	assert.Error(t, err)
	_, err = svc.VerifyDownloadToken("not-a-token")
	assert.Error(t, err)
}

func TestFetchStoredPDFPrefersStoredCopy(t *testing.T) {
	svc, repo, objects, _, _ := newTestCardService(t)
	emp := seedEmployee(t, repo, "Ravi Kumar", "ravi@example.com")

	canned := []byte("%PDF-canned")
	objects.objects[storage.CardKey(emp.ID)] = canned

	got, err := svc.FetchStoredPDF(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, canned, got)

	// Without a stored copy the card is rendered on demand.
	delete(objects.objects, storage.CardKey(emp.ID))
	got, err = svc.FetchStoredPDF(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(got, []byte("%PDF-")))
}

func TestDashboardCounts(t *testing.T) {
	repo := newFakeEmployeeRepo()
	svc := NewDashboardService(repo)
	a := seedEmployee(t, repo, "A", "a@example.com")
	seedEmployee(t, repo, "B", "")
	require.NoError(t, repo.SetPrinted(context.Background(), a.ID))
	require.NoError(t, repo.SetMailed(context.Background(), a.ID))

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.TotalEmployees)
	assert.Equal(t, 2, counts.ActiveEmployees)
	assert.Equal(t, 1, counts.CardsGenerated)
	assert.Equal(t, 1, counts.EmailsSent)

	printed, err := svc.EmployeesByIndicator(context.Background(), "printed")
	require.NoError(t, err)
	require.Len(t, printed, 1)
	assert.Equal(t, a.ID, printed[0].ID)
}
