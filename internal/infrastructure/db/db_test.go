package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/internal/core/ports"
	"github.com/taskpaylabs/taskpayd/internal/infrastructure/db"
)

const (
	testOwner  = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	testWorker = "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF"
	testToken  = "eip155:1:0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func TestService(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "badger",
			config: db.ServiceConfig{
				DbType:   "badger",
				DbConfig: []any{"", nil},
			},
		},
		{
			name: "sqlite",
			config: db.ServiceConfig{
				DbType:   "sqlite",
				DbConfig: []any{t.TempDir()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testTaskRepository(t, svc)
			testResponseRepository(t, svc)
		})
	}
}

func testTaskRepository(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Tasks()

	newTask := func(id string) domain.Task {
		return domain.Task{
			Id:        id,
			Owner:     testOwner,
			Status:    domain.TaskDraft,
			Price:     "0",
			CreatedAt: time.Now().Unix(),
		}
	}

	t.Run("add and get", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, newTask("T1")))

		got, err := repo.Get(ctx, "T1")
		require.NoError(t, err)
		require.Equal(t, "T1", got.Id)
		require.Equal(t, testOwner, got.Owner)
		require.Equal(t, domain.TaskDraft, got.Status)
		require.Equal(t, "0", got.Price)
	})

	t.Run("add duplicate fails", func(t *testing.T) {
		err := repo.Add(ctx, newTask("T1"))
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("get missing fails", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("get by owner", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, newTask("T2")))

		tasks, err := repo.GetByOwner(ctx, testOwner)
		require.NoError(t, err)
		require.Len(t, tasks, 2)

		tasks, err = repo.GetByOwner(ctx, testWorker)
		require.NoError(t, err)
		require.Empty(t, tasks)
	})

	t.Run("mark funded", func(t *testing.T) {
		require.NoError(t, repo.MarkFunded(ctx, "T1", "95", testToken))

		got, err := repo.Get(ctx, "T1")
		require.NoError(t, err)
		require.Equal(t, domain.TaskActive, got.Status)
		require.Equal(t, "95", got.Price)
		require.Equal(t, testToken, got.Token)

		require.ErrorIs(t, repo.MarkFunded(ctx, "T1", "95", testToken), domain.ErrConflict)
		require.ErrorIs(t, repo.MarkFunded(ctx, "missing", "95", testToken), domain.ErrNotFound)
	})

	t.Run("mark finished", func(t *testing.T) {
		require.ErrorIs(t, repo.MarkFinished(ctx, "T2"), domain.ErrConflict)

		require.NoError(t, repo.MarkFinished(ctx, "T1"))
		got, err := repo.Get(ctx, "T1")
		require.NoError(t, err)
		require.Equal(t, domain.TaskFinished, got.Status)

		require.ErrorIs(t, repo.MarkFinished(ctx, "T1"), domain.ErrConflict)
	})

	t.Run("mark closed", func(t *testing.T) {
		require.NoError(t, repo.MarkFunded(ctx, "T2", "95", testToken))
		require.NoError(t, repo.MarkClosed(ctx, "T2", "cafe"))

		got, err := repo.Get(ctx, "T2")
		require.NoError(t, err)
		require.Equal(t, domain.TaskClosed, got.Status)
		require.Equal(t, "cafe", got.WithdrawSignature)

		require.ErrorIs(t, repo.MarkClosed(ctx, "T2", "cafe"), domain.ErrConflict)
		require.ErrorIs(t, repo.MarkClosed(ctx, "T1", "cafe"), domain.ErrConflict)
		require.ErrorIs(t, repo.MarkClosed(ctx, "missing", "cafe"), domain.ErrNotFound)
	})
}

func testResponseRepository(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Responses()

	newResponse := func(id, taskId string) domain.Response {
		return domain.Response{
			Id:        id,
			TaskId:    taskId,
			Worker:    testWorker,
			Status:    domain.ResponsePending,
			Payload:   "encrypted-payload",
			CreatedAt: time.Now().Unix(),
		}
	}

	t.Run("add and get", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, newResponse("R1", "T1")))

		got, err := repo.Get(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, "R1", got.Id)
		require.Equal(t, "T1", got.TaskId)
		require.Equal(t, testWorker, got.Worker)
		require.Equal(t, domain.ResponsePending, got.Status)
		require.Equal(t, "encrypted-payload", got.Payload)
	})

	t.Run("add duplicate fails", func(t *testing.T) {
		require.ErrorIs(t, repo.Add(ctx, newResponse("R1", "T1")), domain.ErrConflict)
	})

	t.Run("get missing fails", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("get by task", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, newResponse("R2", "T1")))
		require.NoError(t, repo.Add(ctx, newResponse("R3", "T2")))

		responses, err := repo.GetByTask(ctx, "T1")
		require.NoError(t, err)
		require.Len(t, responses, 2)

		responses, err = repo.GetByTask(ctx, "missing")
		require.NoError(t, err)
		require.Empty(t, responses)
	})

	t.Run("mark decided", func(t *testing.T) {
		require.NoError(t, repo.MarkDecided(ctx, "R1", domain.ResponseApproved, "blob", "cafe"))

		got, err := repo.Get(ctx, "R1")
		require.NoError(t, err)
		require.Equal(t, domain.ResponseApproved, got.Status)
		require.Equal(t, "blob", got.SettlementBlob)
		require.Equal(t, "cafe", got.SettlementSignature)

		require.NoError(t, repo.MarkDecided(ctx, "R2", domain.ResponseRejected, "", ""))
		got, err = repo.Get(ctx, "R2")
		require.NoError(t, err)
		require.Equal(t, domain.ResponseRejected, got.Status)
		require.Empty(t, got.SettlementBlob)

		require.ErrorIs(t, repo.MarkDecided(ctx, "R1", domain.ResponseRejected, "", ""), domain.ErrConflict)
		require.ErrorIs(t, repo.MarkDecided(ctx, "missing", domain.ResponseApproved, "", ""), domain.ErrNotFound)
	})
}
