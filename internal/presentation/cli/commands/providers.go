package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appProvider "github.com/jbctechsolutions/webdistill/internal/application/provider"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

// ProviderReport combines configuration state and an optional live check.
type ProviderReport struct {
	appProvider.ProviderStatus
	Healthy *bool  `json:"healthy,omitempty"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewProvidersCmd creates the providers command.
func NewProvidersCmd() *cobra.Command {
	var check bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show provider configuration and health",
		Example: `  webdistill providers
  webdistill providers --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return showProviders(ctx, GetFormatter(), check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "perform live health checks")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "health check timeout")
	return cmd
}

func showProviders(ctx context.Context, formatter *output.Formatter, check bool) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	statuses := container.ProviderInitializer().Status()
	reports := make([]ProviderReport, len(statuses))
	index := make(map[string]int, len(statuses))
	for i, st := range statuses {
		reports[i] = ProviderReport{ProviderStatus: st}
		index[st.Name] = i
	}

	if check {
		for _, h := range container.ProviderRegistry().CheckHealth(ctx) {
			i, ok := index[h.Provider]
			if !ok {
				continue
			}
			healthy := h.Status.Healthy
			reports[i].Healthy = &healthy
			reports[i].Message = h.Status.Message
			if h.Status.Latency > 0 {
				reports[i].Latency = h.Status.Latency.Round(time.Millisecond).String()
			}
		}
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		state := "ready"
		switch {
		case !r.Registered:
			state = r.Reason
		case r.Healthy != nil && *r.Healthy:
			state = "healthy " + r.Latency
		case r.Healthy != nil:
			state = "unhealthy: " + r.Message
		}
		rows = append(rows, []string{r.Name, r.Type, r.Endpoint, state})
	}

	return formatter.Render(reports, output.TableData{
		Columns: []output.TableColumn{
			{Header: "PROVIDER"},
			{Header: "TYPE"},
			{Header: "ENDPOINT"},
			{Header: "STATUS"},
		},
		Rows: rows,
	})
}
