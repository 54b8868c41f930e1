package gitlib

import (
	"context"
	"runtime"
)

// WorkerRequest is the interface for requests handled by the Gitlib Worker.
type WorkerRequest interface {
	isWorkerRequest()
}

// TreeDiffRequest asks for a tree diff for a specific commit hash.
type TreeDiffRequest struct {
	PreviousTree       *Tree // Optimization: use existing tree if on same worker/repo.
	PreviousCommitHash Hash  // Fallback: lookup previous tree by hash (safe for pool workers).
	CommitHash         Hash  // Hash of the commit to process.
	RenameSimilarity   float64
	Response           chan<- TreeDiffResponse
}

// TreeDiffResponse is the response for a TreeDiffRequest.
type TreeDiffResponse struct {
	Changes     Changes
	CurrentTree *Tree // The tree of the processed commit. Caller must Free this or pass it back.
	Error       error
}

func (TreeDiffRequest) isWorkerRequest() {}

// Worker manages exclusive, sequential access to the libgit2 Repository.
// It ensures all CGO calls happen on a single OS thread, since libgit2
// handles are not safe to use concurrently across goroutines.
type Worker struct {
	repo     *Repository
	requests <-chan WorkerRequest
	done     chan struct{}
}

// NewWorker creates a new Gitlib Worker that consumes from the given channel.
func NewWorker(repo *Repository, requests <-chan WorkerRequest) *Worker {
	return &Worker{
		repo:     repo,
		requests: requests,
		done:     make(chan struct{}),
	}
}

// Start runs the worker loop. This MUST be called.
// It locks the goroutine to the OS thread to satisfy libgit2 constraints.
func (w *Worker) Start() {
	go func() {
		runtime.LockOSThread()

		defer runtime.UnlockOSThread()
		defer close(w.done)

		for req := range w.requests {
			w.handle(req)
		}
	}()
}

// Stop waits for the worker to finish.
// Note: the caller must close the requests channel to trigger shutdown.
func (w *Worker) Stop() {
	<-w.done
}

func (w *Worker) handle(req WorkerRequest) {
	typedReq, ok := req.(TreeDiffRequest)
	if !ok {
		return
	}

	ctx := context.Background()

	commit, err := w.repo.LookupCommit(ctx, typedReq.CommitHash)
	if err != nil {
		typedReq.Response <- TreeDiffResponse{Error: err}

		return
	}

	commitTree, err := commit.Tree()
	commit.Free() // Safe to free; the tree is an independent libgit2 object.

	if err != nil {
		typedReq.Response <- TreeDiffResponse{Error: err}

		return
	}

	var changes Changes

	switch {
	case typedReq.PreviousTree != nil:
		changes, err = TreeDiff(w.repo, typedReq.PreviousTree, commitTree, typedReq.RenameSimilarity)
	case !typedReq.PreviousCommitHash.IsZero():
		prevCommit, lookupErr := w.repo.LookupCommit(ctx, typedReq.PreviousCommitHash)
		if lookupErr != nil {
			typedReq.Response <- TreeDiffResponse{Error: lookupErr}

			return
		}

		prevTree, treeErr := prevCommit.Tree()
		prevCommit.Free()

		if treeErr != nil {
			typedReq.Response <- TreeDiffResponse{Error: treeErr}

			return
		}

		changes, err = TreeDiff(w.repo, prevTree, commitTree, typedReq.RenameSimilarity)
		prevTree.Free()
	default:
		changes, err = InitialTreeChanges(w.repo, commitTree)
	}

	// commitTree is returned so the caller can reuse it as PreviousTree next
	// time; the caller is responsible for freeing it eventually.
	typedReq.Response <- TreeDiffResponse{
		Changes:     changes,
		CurrentTree: commitTree,
		Error:       err,
	}
}
