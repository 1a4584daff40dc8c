package bbskit

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markbates/grift/grift"

	"github.com/relaybbs/bbskit/jobs"
)

func init() {
	registerJobTasks()
}

// registerJobTasks registers the "bbskit" grift namespace: starting the
// background worker, and manually triggering either scheduled duty outside
// of its normal interval. Grounded on the teacher's jobs namespace, adapted
// to bbskit's two scheduled tasks (session reaping, remote app refresh)
// instead of the teacher's generic job queue.
func registerJobTasks() {
	_ = grift.Namespace("bbskit", func() {
		_ = grift.Desc("worker", "Start the background job worker (session reaper, remote app refresher)")
		_ = grift.Add("worker", func(c *grift.Context) error {
			kit := globalKit
			if kit == nil || kit.Jobs == nil {
				return fmt.Errorf("bbskit: jobs runtime not configured - ensure bbskit.Wire has run")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

			fmt.Println("starting job worker, press Ctrl+C to stop")

			errChan := make(chan error, 1)
			go func() {
				if err := kit.Jobs.Start(); err != nil {
					errChan <- err
				}
			}()

			select {
			case <-sigChan:
				fmt.Println("shutting down worker")
			case err := <-errChan:
				return fmt.Errorf("worker error: %w", err)
			}

			if err := kit.Jobs.Stop(); err != nil {
				return fmt.Errorf("failed to stop worker: %w", err)
			}
			fmt.Println("worker stopped")
			return nil
		})

		_ = grift.Desc("reap-sessions", "Enqueue an immediate session reap, outside its hourly schedule")
		_ = grift.Add("reap-sessions", func(c *grift.Context) error {
			return enqueueNow(jobs.TaskReapSessions)
		})

		_ = grift.Desc("refresh-remote-apps", "Enqueue an immediate remote app refresh, outside its 15-minute schedule")
		_ = grift.Add("refresh-remote-apps", func(c *grift.Context) error {
			return enqueueNow(jobs.TaskRefreshRemotes)
		})
	})
}

func enqueueNow(taskType string) error {
	kit := globalKit
	if kit == nil || kit.Jobs == nil {
		return fmt.Errorf("bbskit: jobs runtime not configured - ensure bbskit.Wire has run")
	}
	if err := kit.Jobs.Enqueue(taskType); err != nil {
		return err
	}
	fmt.Printf("enqueued %s\n", taskType)
	return nil
}

// globalKit holds the Kit set by Wire, so grift tasks running in the same
// process can reach its jobs runtime.
var globalKit *Kit

// SetGlobalKit makes kit visible to the "bbskit" grift tasks.
func SetGlobalKit(kit *Kit) {
	globalKit = kit
}
