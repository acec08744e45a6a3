package ports

import "github.com/taskpaylabs/taskpayd/internal/core/domain"

type RepoManager interface {
	Tasks() domain.TaskRepository
	Responses() domain.ResponseRepository
	Close()
}
