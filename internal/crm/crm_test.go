package crm

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

var customerCols = []string{
	"id", "full_name", "phone", "birthday", "spouse_name", "spouse_phone", "spouse_birthday",
	"favorite_flowers", "notes", "points", "created_at", "updated_at",
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCustomerRepository_BirthdaysOn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM customers WHERE \\(EXTRACT\\(MONTH FROM birthday\\) = \\$1").
		WithArgs(10, 14).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(1, "Aigul", "111", date(1990, 10, 14), "", "", nil, "", "", 10, now, now).
			AddRow(2, "Bakyt", "222", date(1985, 1, 2), "Dinara", "333", date(1988, 10, 14), "", "", 0, now, now).
			AddRow(3, "Cholpon", "444", date(1992, 10, 14), "Ermek", "", date(1991, 10, 14), "", "", 0, now, now))

	matches, err := NewCustomerRepository(db).BirthdaysOn(context.Background(), time.October, 14)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	assert.Equal(t, "Aigul", matches[0].Customer.FullName)
	assert.False(t, matches[0].Spouse)
	assert.Equal(t, "Bakyt", matches[1].Customer.FullName)
	assert.True(t, matches[1].Spouse)
	assert.False(t, matches[2].Spouse)
	assert.True(t, matches[3].Spouse)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM customers ORDER BY full_name, id LIMIT \\$1").
		WithArgs(listLimit).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(1, "Aigul", "111", nil, "", "", nil, "", "", 0, now, now))
	mock.ExpectQuery("SELECT (.+) FROM customers WHERE full_name ILIKE \\$1").
		WithArgs(`%50\%%`, listLimit).
		WillReturnRows(sqlmock.NewRows(customerCols))

	repo := NewCustomerRepository(db)

	all, err := repo.List(context.Background(), "  ")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].Birthday)

	found, err := repo.List(context.Background(), "50%")
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_CreateAndUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	bday := date(1990, 3, 8)

	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("Aigul", "111", sqlmock.AnyArg(), "", "", sqlmock.AnyArg(), "roses", "", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))
	mock.ExpectQuery("UPDATE customers SET full_name = \\$1").
		WithArgs(anyArgs(9)...).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(5, "Aigul K", "111", bday, "", "", nil, "roses", "", 0, now, now))
	mock.ExpectQuery("UPDATE customers SET full_name = \\$1").
		WithArgs(anyArgs(9)...).
		WillReturnError(sql.ErrNoRows)

	repo := NewCustomerRepository(db)

	c := &domain.Customer{FullName: "Aigul", Phone: "111", Birthday: &bday, FavoriteFlowers: "roses"}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(5), c.ID)

	c.FullName = "Aigul K"
	require.NoError(t, repo.Update(context.Background(), c))
	assert.Equal(t, "Aigul K", c.FullName)
	require.NotNil(t, c.Birthday)

	err = repo.Update(context.Background(), &domain.Customer{ID: 99})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestCustomerRepository_AdjustPoints(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("UPDATE customers SET points = points \\+ \\$1").
		WithArgs(15, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(25))

	mock.ExpectQuery("UPDATE customers SET points = points \\+ \\$1").
		WithArgs(-100, int64(1)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("UPDATE customers SET points = points \\+ \\$1").
		WithArgs(5, int64(2)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewCustomerRepository(db)
	ctx := context.Background()

	points, err := repo.AdjustPoints(ctx, 1, 15)
	require.NoError(t, err)
	assert.Equal(t, 25, points)

	_, err = repo.AdjustPoints(ctx, 1, -100)
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)

	_, err = repo.AdjustPoints(ctx, 2, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchBirthdaysLeapDay(t *testing.T) {
	leap := date(1996, 2, 29)
	customers := []domain.Customer{{FullName: "Leap", Birthday: &leap}}

	assert.Len(t, matchBirthdays(customers, time.February, 29), 1)
	assert.Empty(t, matchBirthdays(customers, time.March, 1))
}

type fakeStore struct {
	customers map[int64]domain.Customer
	nextID    int64
}

func (s *fakeStore) List(_ context.Context, search string) ([]domain.Customer, error) {
	out := []domain.Customer{}
	for _, c := range s.customers {
		if search == "" || strings.Contains(strings.ToLower(c.FullName), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *fakeStore) Create(_ context.Context, c *domain.Customer) error {
	s.nextID++
	c.ID = s.nextID
	s.customers[c.ID] = *c
	return nil
}

func (s *fakeStore) Update(_ context.Context, c *domain.Customer) error {
	old, ok := s.customers[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Points = old.Points
	s.customers[c.ID] = *c
	return nil
}

func (s *fakeStore) AdjustPoints(_ context.Context, id int64, delta int) (int, error) {
	c, ok := s.customers[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if c.Points+delta < 0 {
		return 0, domain.ErrInsufficientPoints
	}
	c.Points += delta
	s.customers[id] = c
	return c.Points, nil
}

func TestHandler(t *testing.T) {
	store := &fakeStore{customers: map[int64]domain.Customer{}}
	handler := NewHandler(store, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /customers", handler.HandleList)
	mux.HandleFunc("POST /customers", handler.HandleCreate)
	mux.HandleFunc("GET /customers/{id}", handler.HandleGet)
	mux.HandleFunc("PUT /customers/{id}", handler.HandleUpdate)
	mux.HandleFunc("POST /customers/{id}/points", handler.HandleAdjustPoints)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "create", method: http.MethodPost, path: "/customers", body: `{"full_name":"Aigul","phone":"111","birthday":"1990-10-14","points":10}`, status: http.StatusCreated},
		{name: "create missing phone", method: http.MethodPost, path: "/customers", body: `{"full_name":"Aigul"}`, status: http.StatusUnprocessableEntity},
		{name: "create bad date", method: http.MethodPost, path: "/customers", body: `{"full_name":"A","phone":"1","spouse_birthday":"14.10.1990"}`, status: http.StatusUnprocessableEntity},
		{name: "get", method: http.MethodGet, path: "/customers/1", status: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, path: "/customers/2", status: http.StatusNotFound},
		{name: "get malformed", method: http.MethodGet, path: "/customers/abc", status: http.StatusNotFound},
		{name: "search", method: http.MethodGet, path: "/customers?search=aig", status: http.StatusOK},
		{name: "update", method: http.MethodPut, path: "/customers/1", body: `{"full_name":"Aigul K","phone":"111"}`, status: http.StatusOK},
		{name: "update unknown", method: http.MethodPut, path: "/customers/9", body: `{"full_name":"X","phone":"1"}`, status: http.StatusNotFound},
		{name: "earn points", method: http.MethodPost, path: "/customers/1/points", body: `{"delta":5}`, status: http.StatusOK},
		{name: "overspend points", method: http.MethodPost, path: "/customers/1/points", body: `{"delta":-50}`, status: http.StatusConflict},
		{name: "points unknown", method: http.MethodPost, path: "/customers/9/points", body: `{"delta":1}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	c := store.customers[1]
	assert.Equal(t, "Aigul K", c.FullName)
	assert.Equal(t, 15, c.Points)
}

type fakeFinder struct {
	month   time.Month
	day     int
	matches []domain.BirthdayMatch
	err     error
}

func (f *fakeFinder) BirthdaysOn(_ context.Context, month time.Month, day int) ([]domain.BirthdayMatch, error) {
	f.month, f.day = month, day
	return f.matches, f.err
}

type recordingNotifier struct {
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.msgs = append(n.msgs, msg)
	return n.err
}

func newDigest(t *testing.T, finder BirthdayFinder, n notify.Notifier) *DigestJob {
	t.Helper()
	metrics, err := telemetry.NewStoreMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	job := NewDigestJob(finder, n, time.FixedZone("UTC+6", 6*3600), metrics, discardLogger())
	job.now = func() time.Time { return time.Date(2026, 10, 13, 20, 30, 0, 0, time.UTC) }
	return job
}

func TestDigestJob_Run(t *testing.T) {
	t.Run("uses the configured timezone", func(t *testing.T) {
		finder := &fakeFinder{matches: []domain.BirthdayMatch{{Customer: domain.Customer{FullName: "Aigul"}}}}
		n := &recordingNotifier{}

		require.NoError(t, newDigest(t, finder, n).Run(context.Background()))

		assert.Equal(t, time.October, finder.month)
		assert.Equal(t, 14, finder.day)
		require.Len(t, n.msgs, 1)
		assert.Contains(t, n.msgs[0].Text, "14.10.2026")
		assert.Contains(t, n.msgs[0].Text, "Aigul")
	})

	t.Run("sends even without matches", func(t *testing.T) {
		n := &recordingNotifier{}
		require.NoError(t, newDigest(t, &fakeFinder{}, n).Run(context.Background()))
		require.Len(t, n.msgs, 1)
		assert.Contains(t, n.msgs[0].Text, "No birthdays today.")
	})

	t.Run("query failure skips sending", func(t *testing.T) {
		n := &recordingNotifier{}
		err := newDigest(t, &fakeFinder{err: errors.New("db down")}, n).Run(context.Background())
		require.Error(t, err)
		assert.Empty(t, n.msgs)
	})

	t.Run("notify failure is attempted once", func(t *testing.T) {
		n := &recordingNotifier{err: notify.ErrNoRecipients}
		err := newDigest(t, &fakeFinder{}, n).Run(context.Background())
		require.ErrorIs(t, err, notify.ErrNoRecipients)
		assert.Len(t, n.msgs, 1)
	})
}
