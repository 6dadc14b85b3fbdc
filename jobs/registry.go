package jobs

import (
	"fmt"
	"sync"

	"ringmaster/communication"
)

type kindEntry struct {
	newJob      func() Job
	newResponse func() any
}

var (
	registryMutex sync.RWMutex
	registry      = map[string]kindEntry{}
)

// Register makes a job kind known to workers. newJob and newResponse
// return pointers that a job and its response decode into.
func Register(kind string, newJob func() Job, newResponse func() any) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry[kind] = kindEntry{newJob: newJob, newResponse: newResponse}
}

func lookup(kind string) (kindEntry, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	entry, ok := registry[kind]
	if !ok {
		return kindEntry{}, fmt.Errorf("unknown job kind %q", kind)
	}
	return entry, nil
}

func encodeJob(seq uint64, job Job) (*communication.Message, error) {
	return communication.NewMessage(communication.JobMessage, job.Kind(), seq, job)
}

func decodeJob(msg *communication.Message) (Job, error) {
	entry, err := lookup(msg.Kind)
	if err != nil {
		return nil, err
	}
	job := entry.newJob()
	if err := msg.Decode(job); err != nil {
		return nil, fmt.Errorf("invalid %s job: %w", msg.Kind, err)
	}
	return job, nil
}

func decodeResponse(msg *communication.Message) (any, error) {
	entry, err := lookup(msg.Kind)
	if err != nil {
		return nil, err
	}
	response := entry.newResponse()
	if err := msg.Decode(response); err != nil {
		return nil, fmt.Errorf("invalid %s response: %w", msg.Kind, err)
	}
	return response, nil
}
