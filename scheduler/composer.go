package scheduler

import (
	"errors"
	"fmt"

	"github.com/GoCodeAlone/bootstrap"
	"github.com/GoCodeAlone/bootstrap/maindom"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

// ComposerName is the name the scheduler composer is declared under.
const ComposerName = "scheduler"

func init() {
	typefinder.Register(bootstrap.ComposerCapability, ComposerName, func() any { return &Composer{} })
}

// Composer adds the scheduler component. It is enabled by
// scheduler.enabled.
type Composer struct{}

// Enabled implements bootstrap.EnabledComposer.
func (c *Composer) Enabled(state *bootstrap.RuntimeState) bool {
	return state.Settings().Scheduler().Enabled
}

// Compose implements bootstrap.Composer.
func (c *Composer) Compose(comp *bootstrap.Composition) error {
	// Ensure the collection exists even when no composer adds jobs.
	comp.Collection(bootstrap.ScheduledJobsCollection)
	return comp.Components().AppendFactory(ComposerName, build)
}

func build(f *bootstrap.Factory) (any, error) {
	state, err := bootstrap.ResolveAs[*bootstrap.RuntimeState](f, bootstrap.ServiceRuntimeState)
	if err != nil {
		return nil, err
	}
	mainDom, err := bootstrap.ResolveAs[*maindom.MainDom](f, bootstrap.ServiceMainDom)
	if err != nil {
		return nil, err
	}
	logger, err := bootstrap.ResolveAs[bootstrap.Logger](f, bootstrap.ServiceLogger)
	if err != nil {
		return nil, err
	}

	items, err := f.ResolveCollection(bootstrap.ScheduledJobsCollection)
	if err != nil && !errors.Is(err, bootstrap.ErrCollectionNotFound) {
		return nil, err
	}
	jobs := make([]Job, 0, len(items))
	for _, item := range items {
		switch job := item.Value.(type) {
		case Job:
			jobs = append(jobs, job)
		case *Job:
			jobs = append(jobs, *job)
		default:
			return nil, fmt.Errorf("%w: %s (%T)", ErrNotAJob, item.Name, item.Value)
		}
	}
	return New(state, mainDom, logger, jobs...)
}
