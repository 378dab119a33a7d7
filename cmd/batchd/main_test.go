package main

import (
	"testing"
	"time"

	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/resv"
)

func TestPurgeFinishedJobsRemovesOldHistoryOnly(t *testing.T) {
	jobs := job.NewStore()

	old := job.New("1.batchd", "workq")
	old.St = job.StateHistory
	old.Mtime = time.Now().Add(-48 * time.Hour)
	jobs.Add(old)

	recent := job.New("2.batchd", "workq")
	recent.St = job.StateHistory
	recent.Mtime = time.Now()
	jobs.Add(recent)

	running := job.New("3.batchd", "workq")
	running.St = job.StateRunning
	running.Mtime = time.Now().Add(-48 * time.Hour)
	jobs.Add(running)

	purgeFinishedJobs(jobs)

	if _, ok := jobs.Get("1.batchd"); ok {
		t.Fatal("want old history job purged")
	}
	if _, ok := jobs.Get("2.batchd"); !ok {
		t.Fatal("want recent history job retained")
	}
	if _, ok := jobs.Get("3.batchd"); !ok {
		t.Fatal("want running job retained regardless of age")
	}
}

func TestExpireIdleReservationsOnlyRemovesASAPPastEndTime(t *testing.T) {
	resvs := resv.NewStore()
	now := time.Now()

	expired := resv.New("R1.batchd", now.Add(-2*time.Hour), now.Add(-time.Minute))
	expired.Flags |= resv.FlagASAP
	resvs.Add(expired)

	future := resv.New("R2.batchd", now, now.Add(time.Hour))
	future.Flags |= resv.FlagASAP
	resvs.Add(future)

	nonASAP := resv.New("R3.batchd", now.Add(-2*time.Hour), now.Add(-time.Minute))
	resvs.Add(nonASAP)

	finished := resv.New("R4.batchd", now.Add(-2*time.Hour), now.Add(-time.Minute))
	finished.Flags |= resv.FlagASAP
	finished.St = resv.Finished
	resvs.Add(finished)

	expireIdleReservations(resvs)

	if _, ok := resvs.Get("R1.batchd"); ok {
		t.Fatal("want the expired ASAP reservation removed")
	}
	if _, ok := resvs.Get("R2.batchd"); !ok {
		t.Fatal("want the future ASAP reservation retained")
	}
	if _, ok := resvs.Get("R3.batchd"); !ok {
		t.Fatal("want the non-ASAP reservation retained even though past its end time")
	}
	if _, ok := resvs.Get("R4.batchd"); !ok {
		t.Fatal("want a reservation already marked Finished left for its own cleanup path")
	}
}
