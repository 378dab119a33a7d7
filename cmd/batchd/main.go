// batchd is the core batch Server daemon: node/job/reservation state,
// the dispatch scheduler and peer-resource propagation, exposed over the
// HTTP client batch protocol in api/.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/accounting"
	"github.com/vexxhost/batchd/api"
	"github.com/vexxhost/batchd/api/handlers"
	"github.com/vexxhost/batchd/config"
	"github.com/vexxhost/batchd/database"
	"github.com/vexxhost/batchd/job"
	"github.com/vexxhost/batchd/joblog"
	"github.com/vexxhost/batchd/lockfile"
	"github.com/vexxhost/batchd/node"
	"github.com/vexxhost/batchd/peer"
	"github.com/vexxhost/batchd/resv"
	"github.com/vexxhost/batchd/sched"
	"github.com/vexxhost/batchd/worktask"
)

var configPath = flag.String("config", "", "Path to batchd YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	log.WithFields(log.Fields{
		"port":      cfg.Port,
		"partition": cfg.Partition,
		"db_type":   cfg.DBType,
		"auth":      cfg.AuthEnabled,
	}).Info("starting batchd")

	lock := lockfile.New(cfg.LockfilePath)
	if err := lock.AcquireOrWait(2*time.Second, nil); err != nil {
		log.WithError(err).Fatal("failed to acquire failover lockfile")
	}
	lock.StartTouching()
	defer lock.Release()
	log.WithField("path", cfg.LockfilePath).Info("acquired failover lock, running as active server")

	var conn database.Connection
	if cfg.DBType == "mariadb" {
		conn, err = database.NewMariaDBConnection(&cfg.DB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
	} else {
		conn = database.NewMemoryConnection()
		log.Info("using in-memory storage, no persistence across restarts")
	}
	defer conn.Close()

	nodeRepo := database.NewNodeRepository(conn)
	jobRepo := database.NewJobRepository(conn)
	resvRepo := database.NewReservationRepository(conn)
	schedRepo := database.NewSchedulerRepository(conn)
	peerRepo := database.NewPeerRepository(conn)
	acctRepo := database.NewAccountingRepository(conn)

	if _, err := schedRepo.EnsurePartition(cfg.Partition); err != nil {
		log.WithError(err).Warn("failed to persist scheduler partition row")
	}
	for _, pc := range cfg.Peers {
		if err := peerRepo.AddPeer(pc.Host, pc.Port); err != nil {
			log.WithError(err).WithField("peer", pc.Host).Warn("failed to persist peer row")
		}
	}

	var trackerDB *sql.DB
	if gormDB := conn.GetGormDB(); gormDB != nil {
		trackerDB, err = gormDB.DB()
		if err != nil {
			log.WithError(err).Fatal("failed to derive sql.DB from gorm connection for job-log tracker")
		}
	} else {
		log.Warn("no backing sql.DB available, job-log tracker will run without persistent step history")
	}
	var tracker *joblog.Tracker
	if trackerDB != nil {
		tracker = joblog.New(trackerDB, joblog.NewDBHandler(trackerDB, joblog.DefaultDBHandlerConfig()))
	} else {
		tracker = joblog.New(trackerDB)
	}

	nc, err := nats.Connect(cfg.NATSUrl, nats.MaxReconnects(-1), nats.ReconnectWait(2*time.Second))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to message bus")
	}
	defer nc.Close()

	nodes := node.NewIndex()
	jobs := job.NewStore()
	resvs := resv.NewStore()

	exec := worktask.NewExecutor(256)
	go exec.Run()
	defer exec.Stop()

	mom := job.NewNatsMom(nc, 5*time.Second)
	rerunner := &job.Rerunner{Exec: exec, Mom: mom, Timeout: job.DefaultRequeueTimeout}

	scheds := map[string]*sched.Scheduler{
		cfg.Partition: sched.New(nc, cfg.Partition),
	}

	peers := make(map[string]*peer.Server, len(cfg.Peers))
	for _, pc := range cfg.Peers {
		p := peer.NewServer(pc.Host, pc.Port)
		peers[p.PeerName()] = p
	}
	var propagator *peer.Propagator
	transport := peer.NewTransport(nc, func(err error) {
		log.WithError(err).Warn("message bus disconnected, peers will need re-hello")
		for name, p := range peers {
			p.MarkNeedsHello()
			log.WithField("peer", name).Debug("marked peer needs_hello after disconnect")
		}
	}, func() {
		log.Info("message bus reconnected")
		for name := range peers {
			if err := propagator.FullPush(name); err != nil {
				log.WithError(err).WithField("peer", name).Warn("failed to send full resource push after reconnect")
			}
		}
	})
	propagator = peer.NewPropagator(transport, peers)
	job.Observe(propagator.EmitOnTransition())

	if _, err := transport.SubscribeUpdates(func(updates []peer.Update) {
		for name, p := range peers {
			applied := 0
			for _, u := range updates {
				if err := p.Ledger.Apply(u); err != nil {
					log.WithError(err).WithField("peer", name).Warn("failed to apply resource update")
					continue
				}
				applied++
			}
			if applied > 0 {
				p.Ack(applied)
			}
		}
	}); err != nil {
		log.WithError(err).Error("failed to subscribe to peer resource updates")
	}

	selfHost, err := os.Hostname()
	if err != nil {
		selfHost = "localhost"
	}
	for name := range peers {
		if err := transport.Connect(selfHost, cfg.Port); err != nil {
			log.WithError(err).WithField("peer", name).Warn("failed to send hello to peer")
			continue
		}
		log.WithField("peer", name).Info("sent hello to peer")
	}

	writer := accounting.NewWriter(cfg.AccountingLogPath, acctRepo)
	job.Observe(writer.EmitOnTransition())
	resv.Observe(writer.EmitOnResvTransition())

	active := true
	h := handlers.NewHandlers(nodes, jobs, resvs, scheds, peers, exec, rerunner, tracker, nodeRepo, jobRepo, resvRepo)

	serverConfig := &api.Config{
		Port:        cfg.Port,
		AuthEnabled: cfg.AuthEnabled,
		AuthToken:   cfg.AuthToken,
		Debug:       cfg.Debug,
	}
	apiServer, err := api.NewServer(serverConfig, h, func() bool { return active })
	if err != nil {
		log.WithError(err).Fatal("failed to create api server")
	}

	maintenance := cron.New()
	if _, err := maintenance.AddFunc("@hourly", func() {
		log.Debug("running scheduled job-history purge")
		purgeFinishedJobs(jobs)
	}); err != nil {
		log.WithError(err).Error("failed to register job-history purge cron entry")
	}
	if _, err := maintenance.AddFunc("@every 1m", func() {
		log.Debug("running scheduled reservation idle-expiry sweep")
		expireIdleReservations(resvs)
	}); err != nil {
		log.WithError(err).Error("failed to register reservation idle-expiry cron entry")
	}
	maintenance.Start()
	defer maintenance.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received, stopping batchd")
		cancel()
	}()

	log.WithField("url", fmt.Sprintf("http://localhost:%d/health", cfg.Port)).Info("health check available at")
	if err := apiServer.Start(ctx); err != nil {
		log.WithError(err).Fatal("api server exited with error")
	}
}

// historyRetention is how long a job stays queryable in state X or F before
// this sweep drops it from the in-memory table, spec.md section 3's
// "history retention" note.
const historyRetention = 24 * time.Hour

func purgeFinishedJobs(jobs *job.Store) {
	for _, j := range jobs.All() {
		if j.St != job.StateHistory && j.St != job.StateFailedHistory {
			continue
		}
		if time.Since(j.Mtime) < historyRetention {
			continue
		}
		jobs.Remove(j.ID)
	}
}

func expireIdleReservations(resvs *resv.Store) {
	now := time.Now()
	for _, r := range resvs.All() {
		if r.Flags&resv.FlagASAP == 0 {
			continue
		}
		if r.St == resv.Finished {
			continue
		}
		if now.Before(r.Etime) {
			continue
		}
		resvs.Remove(r.ID)
	}
}
