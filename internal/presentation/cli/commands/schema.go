package commands

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/application/crawl"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// schemaTargets maps schema names to the value reflected for them.
var schemaTargets = map[string]any{
	"record":  &page.Record{},
	"summary": &crawl.Summary{},
}

// NewSchemaCmd creates the schema command.
func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "schema [record|summary]",
		Short:       "Print the JSON schema of records or run summaries",
		Long:        `Print the JSON schema of the records written by sinks (default) or of the summary printed by "run -o json".`,
		Args:        cobra.MaximumNArgs(1),
		ValidArgs:   []string{"record", "summary"},
		Annotations: standalone,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "record"
			if len(args) == 1 {
				name = args[0]
			}
			schema, err := buildSchema(name)
			if err != nil {
				return err
			}
			return GetFormatter().JSON(schema)
		},
	}
	return cmd
}

func buildSchema(name string) (*jsonschema.Schema, error) {
	target, ok := schemaTargets[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (want record or summary)", name)
	}
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(target)
	schema.Title = "webdistill " + name
	return schema, nil
}
