package kafka_storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKafkaStorage_IgnoreMessages(t *testing.T) {
	req := require.New(t)

	ks := &KafkaStorage{
		idIgnoreList:     map[string]struct{}{},
		offsetIgnoreList: map[uint64]struct{}{},
	}

	req.NoError(ks.IgnoreMessages([]string{"id-1", "id-2"}, false))
	req.Contains(ks.idIgnoreList, "id-1")
	req.Contains(ks.idIgnoreList, "id-2")

	req.NoError(ks.IgnoreMessages([]string{"10", "11"}, true))
	req.Contains(ks.offsetIgnoreList, uint64(10))
	req.Contains(ks.offsetIgnoreList, uint64(11))

	req.Error(ks.IgnoreMessages([]string{"not-an-offset"}, true))

	ks.UnignoreMessages()
	req.Empty(ks.idIgnoreList)
	req.Empty(ks.offsetIgnoreList)
}

func TestGetTLSConfig(t *testing.T) {
	req := require.New(t)

	config, err := GetTLSConfig("")
	req.NoError(err)
	req.NotNil(config)
	req.Nil(config.RootCAs)

	_, err = GetTLSConfig("/nonexistent/trust_store.crt")
	req.Error(err)

	f, err := os.CreateTemp("", "qvault_test_ca")
	req.NoError(err)
	defer os.Remove(f.Name())
	req.NoError(f.Close())

	config, err = GetTLSConfig(f.Name())
	req.NoError(err)
	req.NotNil(config.RootCAs)
}
