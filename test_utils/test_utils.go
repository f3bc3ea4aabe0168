package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	User     = "neo4j"
	Password = "password"

	// ImportDir is the server's LOAD CSV root inside the container.
	ImportDir = "/var/lib/neo4j/import"
)

// Neo4J is a disposable server started by [StartNeo4J].
type Neo4J struct {
	URI    string
	Driver neo4j.DriverWithContext

	container testcontainers.Container
}

// Terminate closes the driver and removes the container.
func (n *Neo4J) Terminate(ctx context.Context) error {
	_ = n.Driver.Close(ctx)
	return n.container.Terminate(ctx)
}

// StartNeo4J starts a Neo4j 5 container with every *.csv file of csvDir
// copied into its import directory, so the files are reachable under
// file:///.
func StartNeo4J(ctx context.Context, csvDir string) (*Neo4J, error) {
	matches, err := filepath.Glob(filepath.Join(csvDir, "*.csv"))
	if err != nil {
		return nil, err
	}
	files := make([]testcontainers.ContainerFile, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, err
		}
		files = append(files, testcontainers.ContainerFile{
			HostFilePath:      abs,
			ContainerFilePath: ImportDir + "/" + filepath.Base(m),
			FileMode:          0o644,
		})
	}

	request := testcontainers.ContainerRequest{
		Image:        "neo4j:5.7-enterprise",
		ExposedPorts: []string{"7687/tcp"},
		WaitingFor:   wait.ForLog("Bolt enabled").WithStartupTimeout(time.Minute * 2),
		Files:        files,
		Env: map[string]string{
			"NEO4J_AUTH":                      fmt.Sprintf("%s/%s", User, Password),
			"NEO4J_ACCEPT_LICENSE_AGREEMENT":  "yes",
			"NEO4J_server_directories_import": ImportDir,
		},
	}
	container, err := testcontainers.GenericContainer(
		ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: request,
			Started:          true,
		})
	if err != nil {
		return nil, fmt.Errorf("container should start: %w", err)
	}

	port, err := container.MappedPort(ctx, "7687")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	uri := fmt.Sprintf("bolt://localhost:%d", port.Int())
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(User, Password, ""),
	)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &Neo4J{URI: uri, Driver: driver, container: container}, nil
}
