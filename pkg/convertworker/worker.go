// Package convertworker is the single-consumer asynchronous job queue that
// performs metadata extraction (and cover import) off the request path,
// publishing its result to the EventBus. Modelled on the teacher's
// pkg/worker dispatch-table consumer, collapsed from a DB-polled job table
// to a single in-process buffered channel per the spec's queue model.
package convertworker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"

	"github.com/shishobooks/shisho/pkg/eventbus"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/metaextract"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

const queueCapacity = 1024

var errJobPanicked = errors.New("conversion job panicked")

// ExtractMetaJob is the unit of work submitted by HTTP handlers.
type ExtractMetaJob struct {
	OperationID  string
	FilePath     pathmodel.ValidPath
	ExtractCover bool
}

// Worker drains jobs strictly FIFO on a single goroutine, so extraction
// output events stay ordered per submitter.
type Worker struct {
	log       logger.Logger
	extractor *metaextract.Extractor
	store     *fsstore.Store
	bus       *eventbus.Bus

	queue    chan ExtractMetaJob
	shutdown chan struct{}
	done     chan struct{}
}

func New(extractor *metaextract.Extractor, store *fsstore.Store, bus *eventbus.Bus) *Worker {
	return &Worker{
		log:       logger.New(),
		extractor: extractor,
		store:     store,
		bus:       bus,
		queue:     make(chan ExtractMetaJob, queueCapacity),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Submit enqueues a job, blocking if the queue is at capacity - this is the
// back-pressure the spec calls for once 1024 jobs are outstanding.
func (w *Worker) Submit(job ExtractMetaJob) {
	w.queue <- job
}

func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) Shutdown() {
	close(w.shutdown)
	<-w.done
}

func (w *Worker) run() {
	for {
		select {
		case <-w.shutdown:
			close(w.done)
			return
		case job := <-w.queue:
			w.processSafely(job)
		}
	}
}

func (w *Worker) processSafely(job ExtractMetaJob) {
	log := w.log.Root(logger.Data{"operation_id": job.OperationID})

	defer func() {
		if r := recover(); r != nil {
			log.Err(errors.Wrapf(errJobPanicked, "%v", r)).Error("extraction job panicked")
			w.publishError(job.OperationID, "extraction job panicked")
		}
	}()

	if err := w.process(job); err != nil {
		log.Err(err).Error("extraction job failed")
		w.publishError(job.OperationID, err.Error())
	}
}

func (w *Worker) process(job ExtractMetaJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), metaextract.Timeout+10*time.Second)
	defer cancel()

	localPath := w.store.LocalPath(job.FilePath)

	meta, err := w.extractor.ExtractMetadata(ctx, localPath, job.ExtractCover)
	if err != nil {
		return err
	}

	if meta.CoverFile != "" {
		coverPath, err := pathmodel.UploadPath("jpg")
		if err != nil {
			return err
		}
		info, err := w.store.ImportFile(meta.CoverFile, coverPath, true)
		if err != nil {
			return errors.Wrap(err, "importing extracted cover")
		}
		meta.CoverFile = info.FinalPath.String()
	}

	w.bus.Publish("extract_meta", map[string]interface{}{
		"operation_id": job.OperationID,
		"created":      time.Now().UTC().Format(time.RFC3339),
		"success":      true,
		"metadata":     meta,
	})
	return nil
}

func (w *Worker) publishError(operationID, msg string) {
	w.bus.Publish("extract_meta_error", map[string]interface{}{
		"operation_id": operationID,
		"created":      time.Now().UTC().Format(time.RFC3339),
		"success":      false,
		"error":        msg,
	})
}
