package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nightlight/app"
	"nightlight/jobqueue"
	"nightlight/model"
	"nightlight/notify"
	"nightlight/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type pushMessage struct {
	To    []string          `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// gatewayRecorder is an in-memory stand-in for the push gateway.
type gatewayRecorder struct {
	mu       sync.Mutex
	messages []pushMessage
}

func (g *gatewayRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg pushMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	g.messages = append(g.messages, msg)
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (g *gatewayRecorder) all() []pushMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pushMessage(nil), g.messages...)
}

func (g *gatewayRecorder) reset() {
	g.mu.Lock()
	g.messages = nil
	g.mu.Unlock()
}

type TestSuite struct {
	suite.Suite

	pgContainer *pgContainer.PostgresContainer

	pool *pgxpool.Pool

	gateway   *gatewayRecorder
	gatewaySv *httptest.Server

	st    *store.PostgresStore
	queue *jobqueue.Queue
	app   *app.App

	cancelWorker context.CancelFunc
	worker       *jobqueue.Worker
}

func (t *TestSuite) SetupSuite() {
	log.SetOutput(os.Stderr)
	t.T().Log("setting up the suite")

	containerCtx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	var (
		pgDB   = "nightlight"
		pgUser = "user"
		pgPass = "pass"
	)

	postgresContainer, err := pgContainer.Run(containerCtx,
		"postgres:17",
		pgContainer.WithDatabase(pgDB),
		pgContainer.WithUsername(pgUser),
		pgContainer.WithPassword(pgPass),
		pgContainer.BasicWaitStrategies(),
	)
	if err != nil {
		t.FailNow("failed to start postgres container", err)
	}
	t.pgContainer = postgresContainer

	pgAddr, err := t.pgContainer.Endpoint(containerCtx, "")
	if err != nil {
		t.FailNow("failed to get postgres endpoint", err)
	}
	dbpool, err := pgxpool.New(context.Background(), fmt.Sprintf("postgres://%s:%s@%s/%s", pgUser, pgPass, pgAddr, pgDB))
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	t.pool = dbpool

	appSchema, err := os.ReadFile(filepath.Join("..", "store", "pg_schema.sql"))
	if err != nil {
		t.T().Fatal(err)
	}
	if _, err := t.pool.Exec(t.T().Context(), string(appSchema)); err != nil {
		t.T().Fatalf("failed to apply schema: %v", err)
	}

	jobQueueSchema, err := os.ReadFile(filepath.Join("..", "jobqueue", "schema.sql"))
	if err != nil {
		t.T().Fatal(err)
	}
	if _, err := t.pool.Exec(t.T().Context(), string(jobQueueSchema)); err != nil {
		t.T().Fatalf("failed to apply job queue schema: %v", err)
	}

	t.gateway = &gatewayRecorder{}
	t.gatewaySv = httptest.NewServer(t.gateway)

	t.st = store.NewPostgresStore(dbpool)
	t.queue = jobqueue.NewQueue(dbpool)
	notifier := notify.New(t.st, nil, t.gatewaySv.URL, notify.DefaultTemplates(), nil)

	t.app = app.New(t.st, t.queue, notifier, nil)

	t.worker = jobqueue.NewWorker(t.pool, t.app.HandlerFunc(), jobqueue.WorkerConfig{
		PollInterval: 50 * time.Millisecond,
		Logger:       log.Default(),
	})

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	t.cancelWorker = cancelWorker
	go t.worker.Run(workerCtx)
}

func (t *TestSuite) TearDownSuite() {
	t.gatewaySv.Close()

	t.pool.Close()

	if err := testcontainers.TerminateContainer(t.pgContainer); err != nil {
		log.Printf("failed to terminate postgres container: %s", err)
	}

	t.cancelWorker()

	t.worker.Wait()
}

func (t *TestSuite) AfterTest(suiteName, testName string) {
	t.gateway.reset()

	rows, err := t.pool.Query(t.T().Context(), `
        SELECT tablename
        FROM pg_tables
        WHERE schemaname = 'public'
    `)
	if err != nil {
		t.T().Fatalf("failed to list tables: %v", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			t.T().Fatalf("failed to scan table name: %v", err)
		}
		tableNames = append(tableNames, tableName)
	}
	if err := rows.Err(); err != nil {
		t.T().Fatalf("rows error: %v", err)
	}

	for _, tableName := range tableNames {
		if _, err := t.pool.Exec(t.T().Context(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName)); err != nil {
			t.T().Fatalf("failed to truncate table %s: %v", tableName, err)
		}
	}
}

func (t *TestSuite) createUser(name string, tokens ...string) model.User {
	u, err := t.st.CreateUser(t.T().Context(), name, tokens)
	t.Require().NoError(err)
	return u
}

func (t *TestSuite) jobStatus(id uuid.UUID) jobqueue.JobStatus {
	job, err := t.queue.GetJob(t.T().Context(), id)
	t.Require().NoError(err)
	return job.Status
}

func (t *TestSuite) jobExists(id uuid.UUID) bool {
	var n int
	err := t.pool.QueryRow(t.T().Context(), `SELECT count(*) FROM jobs WHERE id=$1`, id).Scan(&n)
	t.Require().NoError(err)
	return n > 0
}

func (t *TestSuite) notificationsOfKind(userID uuid.UUID, kind string) []model.Notification {
	ns, err := t.st.ListNotifications(t.T().Context(), userID, 100)
	t.Require().NoError(err)
	var out []model.Notification
	for _, n := range ns {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func Test_TestSuite(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
