package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"tribenet/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Posts.DefaultCooldownSeconds != 60 {
		t.Fatalf("unexpected default cooldown: %d", AppConfig.Posts.DefaultCooldownSeconds)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Posts.MaxBatchSize != 25 {
		t.Fatalf("expected MaxBatchSize 25, got %d", AppConfig.Posts.MaxBatchSize)
	}
	if AppConfig.Logging.Level != "debug" {
		t.Fatalf("expected logging level override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("posts:\n  default_cooldown_seconds: 10\n  max_batch_size: 5\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Posts.DefaultCooldownSeconds != 10 {
		t.Fatalf("expected default cooldown 10, got %d", AppConfig.Posts.DefaultCooldownSeconds)
	}
	if AppConfig.Posts.MaxBatchSize != 5 {
		t.Fatalf("expected MaxBatchSize 5, got %d", AppConfig.Posts.MaxBatchSize)
	}
}
