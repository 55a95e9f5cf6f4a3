package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/chatrelay/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// answers collects the wizard's choices.
type answers struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKeyEnv   string
	Bind        string
	IdleTimeout string
	AdminToken  string
}

func defaultAnswers() answers {
	return answers{
		Provider:    "provider.ollama",
		BaseURL:     "http://localhost:11434",
		Bind:        "127.0.0.1:8000",
		IdleTimeout: "60m",
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if output == "" {
				output = defaultConfigPath()
			}

			a := defaultAnswers()
			if err := runWizard(&a); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			data, err := renderConfig(a)
			if err != nil {
				return err
			}
			if err := writeConfig(output, data, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the file (default: user config directory)")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func runWizard(a *answers) error {
	backend := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Completion backend").
				Options(
					huh.NewOption("Ollama", "provider.ollama"),
					huh.NewOption("OpenAI-compatible API", "provider.openai_compatible"),
					huh.NewOption("Anthropic", "provider.anthropic"),
				).
				Value(&a.Provider),
		),
	)
	if err := backend.Run(); err != nil {
		return err
	}

	var fields []huh.Field
	if a.Provider != "provider.anthropic" {
		if a.Provider == "provider.openai_compatible" {
			a.BaseURL = "http://localhost:11434/v1"
		}
		fields = append(fields, huh.NewInput().
			Title("Backend base URL").
			Value(&a.BaseURL).
			Validate(validateURL))
	}
	if a.Provider != "provider.ollama" {
		a.APIKeyEnv = "OPENAI_API_KEY"
		if a.Provider == "provider.anthropic" {
			a.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		fields = append(fields, huh.NewInput().
			Title("Environment variable holding the API key").
			Value(&a.APIKeyEnv))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Default model").
			Description("Used when a request names none. Leave empty for the backend default.").
			Value(&a.Model),
		huh.NewInput().
			Title("Gateway bind address").
			Value(&a.Bind),
		huh.NewInput().
			Title("Session idle timeout").
			Value(&a.IdleTimeout),
		huh.NewInput().
			Title("Admin bearer token").
			Description("Protects /status and /api/*. Leave empty to disable the admin routes.").
			EchoMode(huh.EchoModePassword).
			Value(&a.AdminToken),
	)

	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an http:// or https:// URL")
	}
	return nil
}

// renderConfig turns the answers into a configuration file and checks it
// parses back.
func renderConfig(a answers) ([]byte, error) {
	backend := map[string]any{}
	if a.BaseURL != "" && a.Provider != "provider.anthropic" {
		backend["base_url"] = a.BaseURL
	}
	if a.Model != "" {
		backend["model"] = a.Model
	}
	if a.APIKeyEnv != "" && a.Provider != "provider.ollama" {
		backend["api_key_env"] = a.APIKeyEnv
	}

	gw := map[string]any{
		"bind": a.Bind,
		"cors": map[string]any{"allowed_origins": []string{"*"}},
	}
	if a.AdminToken != "" {
		gw["auth"] = map[string]any{"bearer_token": a.AdminToken}
	}

	doc := map[string]any{
		"version":   "1",
		"log":       map[string]any{"level": "info", "format": "text"},
		"telemetry": map[string]any{"exporter": "none"},
		"modules": map[string]any{
			a.Provider:       backend,
			"session.memory": map[string]any{"idle_timeout": a.IdleTimeout},
			"gateway.http":   gw,
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("init: encode config: %w", err)
	}
	if _, err := config.Parse(data); err != nil {
		return nil, fmt.Errorf("init: generated config does not parse: %w", err)
	}
	return data, nil
}

func writeConfig(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("init: %s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	// The file may hold an admin token.
	return os.WriteFile(path, data, 0o600)
}

func defaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "chatrelay", config.FileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "chatrelay", config.FileName)
	}
	return config.FileName
}
