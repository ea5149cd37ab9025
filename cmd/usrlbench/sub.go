package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/sub"
)

var (
	subRegionPath string
	subTopicName  string
	subDuration   time.Duration
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Run a subscriber loop against a topic and report throughput",
	RunE:  runSub,
}

func init() {
	subCmd.Flags().StringVarP(&subRegionPath, "region", "r", "", "path to an existing region (required)")
	subCmd.Flags().StringVarP(&subTopicName, "topic", "t", "", "topic name (required)")
	subCmd.Flags().DurationVarP(&subDuration, "duration", "d", 5*time.Second, "how long to consume")
	subCmd.MarkFlagRequired("region")
	subCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(subCmd)
}

func runSub(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	r, err := region.Attach(subRegionPath)
	if err != nil {
		return fmt.Errorf("usrlbench sub: %w", err)
	}
	defer r.Close()

	topic, err := r.Lookup(subTopicName)
	if err != nil {
		return fmt.Errorf("usrlbench sub: %w", err)
	}

	subscriber := sub.New(r, topic)
	buf := make([]byte, topic.PayloadCapacity())

	var received uint64
	deadline := time.Now().Add(subDuration)
	for time.Now().Before(deadline) {
		result, _, err := subscriber.Next(buf)
		if err != nil && result != sub.ResultTruncated {
			log.Errorw("subscriber error", "error", err)
			continue
		}
		if result == sub.ResultEmpty {
			time.Sleep(100 * time.Microsecond)
			continue
		}
		received++
	}

	rate := float64(received) / subDuration.Seconds()
	log.Infow("consume benchmark complete",
		"topic", subTopicName,
		"messages", received,
		"msgs_per_sec", rate,
		"skipped", subscriber.Skipped,
		"discarded", subscriber.Discarded,
	)
	return nil
}
