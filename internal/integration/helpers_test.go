//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const streetCSV = `Crime ID,Month,Reported by,Falls within,Longitude,Latitude,Location,LSOA code,LSOA name,Crime type,Last outcome category,Context,MSOA
,2024-03,South Yorkshire Police,South Yorkshire Police,-1.521,53.352,On or near Abbey Lane,E01007890,Sheffield 050A,Anti-social behaviour,,,Bents Green & Millhouses
a1,2024-03,South Yorkshire Police,South Yorkshire Police,-1.523,53.354,On or near Millhouses Lane,E01007890,Sheffield 050A,Burglary,Under investigation,,Bents Green & Millhouses
a2,2024-03,South Yorkshire Police,South Yorkshire Police,-1.519,53.350,On or near Bents Road,E01007891,Sheffield 050B,Robbery,Unable to prosecute suspect,,Bents Green & Millhouses
a3,2024-03,South Yorkshire Police,South Yorkshire Police,-1.500,53.360,On or near Ecclesall Road,E01007900,Sheffield 040A,Shoplifting,Awaiting court outcome,,Ecclesall
a4,2024-03,South Yorkshire Police,South Yorkshire Police,,,No Location,,,Drugs,Local resolution,,
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeStreetCSV writes the fixture to a fresh directory and returns it.
func writeStreetCSV(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-south-yorkshire-street.csv"), []byte(streetCSV), 0o600))
	return dir
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("crime-map-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}
