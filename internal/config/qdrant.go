package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const defaultQdrantGRPCPort = 6334

type QdrantConfig struct {
	URL               string `mapstructure:"url"`
	APIKey            string `mapstructure:"api_key"`
	UseTLS            bool   `mapstructure:"use_tls"`
	Collection        string `mapstructure:"collection"`
	VectorSize        int    `mapstructure:"vector_size"`
	SegmentCount      int    `mapstructure:"segment_count"`
	MemmapThreshold   int    `mapstructure:"memmap_threshold"`
	ReplicationFactor int    `mapstructure:"replication_factor"`
}

// Endpoint splits URL into the gRPC host and port and reports whether the
// scheme asks for TLS. A URL without a port uses the Qdrant gRPC port 6334.
func (c QdrantConfig) Endpoint() (host string, port int, tls bool, err error) {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		// Bare "host:port" either fails to parse or parses as scheme:opaque.
		u, err = url.Parse("http://" + c.URL)
		if err != nil || u.Host == "" {
			return "", 0, false, fmt.Errorf("qdrant: invalid url %q", c.URL)
		}
	}

	host = u.Hostname()
	port = defaultQdrantGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port in %q: %w", c.URL, err)
		}
	}
	return host, port, u.Scheme == "https" || c.UseTLS, nil
}

// Address returns host:port for grpc.NewClient.
func (c QdrantConfig) Address() (string, error) {
	host, port, _, err := c.Endpoint()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func (c QdrantConfig) validate() error {
	if c.Collection == "" {
		return fmt.Errorf("qdrant: collection is required")
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("qdrant: vector_size must be positive")
	}
	if c.ReplicationFactor <= 0 {
		return fmt.Errorf("qdrant: replication_factor must be positive")
	}
	_, _, _, err := c.Endpoint()
	return err
}
