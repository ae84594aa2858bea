package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

// commitJob carries one finalized gesture to the command queue. The confirm
// and revert hooks reconcile the engine's optimistic state once delivery
// succeeds or fails.
type commitJob struct {
	userID  string
	cmds    []domain.Command
	added   []string // deduper keys to roll back on delivery failure
	confirm func()
	revert  func()
}

var (
	once           sync.Once
	jobs           chan commitJob
	workerCount    int
	jobBuf         int
	deliverTimeout time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	globalStore    Storage
	globalDeduper  Deduper
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownCommitSender stops worker goroutines and clears shared state. It is intended for tests.
func shutdownCommitSender() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalStore = nil
	globalDeduper = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	deliverTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

func initCommitSender(store Storage, deduper Deduper, logger *log.Logger) {
	once.Do(func() {
		globalStore = store
		globalDeduper = deduper
		if logger == nil {
			panic("Logger is not initialized")
		}
		globalLog = logger

		workerCount = envInt("COMMIT_WORKERS", 16)
		jobBuf = envInt("COMMIT_BUFFER", 1024)
		deliverTimeout = envDur("COMMIT_TIMEOUT", 60*time.Second)
		handoffTimeout = envDur("COMMIT_HANDOFF_TIMEOUT", 15*time.Millisecond)

		jobs = make(chan commitJob, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go worker(i, jobs)
		}
		globalLog.Infof("commit sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, deliverTimeout, handoffTimeout)
	})
}

func worker(id int, jobCh <-chan commitJob) {
	defer workerWG.Done()
	for j := range jobCh {
		ctx, cancel := context.WithTimeout(bg, deliverTimeout)
		err := globalStore.EnqueueCommands(ctx, j.userID, j.cmds)
		cancel()

		if err != nil {
			for _, k := range j.added {
				if rerr := globalDeduper.Remove(bg, j.userID, k); rerr != nil {
					globalLog.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, k, j.userID)
				}
			}
			if j.revert != nil {
				j.revert()
			}
			globalLog.WithFields(log.Fields{
				"error":  err.Error(),
				"user":   j.userID,
				"count":  len(j.cmds),
				"worker": id,
			}).Error("commit.failed")
			continue
		}
		if j.confirm != nil {
			j.confirm()
		}
	}
}

func tryEnqueueJob(job commitJob) bool {
	if jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan commitJob, job commitJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan commitJob, job commitJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDur(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
