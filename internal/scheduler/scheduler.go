package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job интерфейс для периодических задач
type Job interface {
	Run(ctx context.Context) error
}

// namedJob связывает задачу с именем для логов
type namedJob struct {
	name string
	job  Job
}

// Scheduler управляет запуском периодических задач. В этом сервисе он
// страховочный: основная работа (ежедневный сброс) запускается лениво
// на граничных операциях, а планировщик гарантирует ее выполнение при
// отсутствии трафика.
type Scheduler struct {
	logger *zap.Logger
	jobs   []namedJob
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
	}
}

// AddJob добавляет задачу в планировщик
func (s *Scheduler) AddJob(name string, job Job) {
	s.jobs = append(s.jobs, namedJob{name: name, job: job})
}

// Start запускает планировщик с указанным интервалом
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("запуск планировщика задач",
		zap.Duration("interval", interval),
		zap.Int("jobs_count", len(s.jobs)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Запускаем задачи сразу при старте
	s.runJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("остановка планировщика задач")
			return
		case <-ticker.C:
			s.runJobs(ctx)
		}
	}
}

// runJobs запускает все зарегистрированные задачи
func (s *Scheduler) runJobs(ctx context.Context) {
	for _, j := range s.jobs {
		s.logger.Debug("запуск задачи", zap.String("job", j.name))

		if err := j.job.Run(ctx); err != nil {
			s.logger.Error("ошибка выполнения задачи",
				zap.Error(err),
				zap.String("job", j.name))
		}
	}
}
