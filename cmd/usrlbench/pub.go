package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedarsh/usrl-core/internal/pub"
	"github.com/vedarsh/usrl-core/internal/region"
)

var (
	pubRegionPath string
	pubTopicName  string
	pubDuration   time.Duration
	pubPayload    int
	pubWorkers    int
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Run publisher workers against a topic and report throughput",
	RunE:  runPub,
}

func init() {
	pubCmd.Flags().StringVarP(&pubRegionPath, "region", "r", "", "path to an existing region (required)")
	pubCmd.Flags().StringVarP(&pubTopicName, "topic", "t", "", "topic name (required)")
	pubCmd.Flags().DurationVarP(&pubDuration, "duration", "d", 5*time.Second, "how long to publish")
	pubCmd.Flags().IntVar(&pubPayload, "payload", 64, "payload size in bytes")
	pubCmd.Flags().IntVarP(&pubWorkers, "workers", "w", 1, "number of concurrent publisher goroutines")
	pubCmd.MarkFlagRequired("region")
	pubCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(pubCmd)
}

func runPub(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	r, err := region.Attach(pubRegionPath)
	if err != nil {
		return fmt.Errorf("usrlbench pub: %w", err)
	}
	defer r.Close()

	topic, err := r.Lookup(pubTopicName)
	if err != nil {
		return fmt.Errorf("usrlbench pub: %w", err)
	}

	payload := make([]byte, pubPayload)
	var total uint64
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < pubWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			publisher, err := pub.New(r, topic, uint16(workerID+1))
			if err != nil {
				log.Errorw("failed to build publisher", "worker", workerID, "error", err)
				return
			}
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := publisher.Publish(payload); err != nil {
					log.Errorw("publish failed", "worker", workerID, "error", err)
					return
				}
				atomic.AddUint64(&total, 1)
			}
		}(i)
	}

	time.Sleep(pubDuration)
	close(stop)
	wg.Wait()

	rate := float64(total) / pubDuration.Seconds()
	log.Infow("publish benchmark complete", "topic", pubTopicName, "messages", total, "msgs_per_sec", rate)
	return nil
}
