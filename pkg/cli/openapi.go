package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/injurystore/pkg/api"
	"github.com/nimburion/injurystore/pkg/version"
)

func (a *app) openapiCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document of the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := api.OpenAPIDocument(version.Current(a.opts.Name).Version)
			switch output {
			case "", "json":
				return writeJSON(cmd.OutOrStdout(), doc)
			case "yaml":
				data, err := yaml.Marshal(doc)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				return fmt.Errorf("unsupported output %q (json, yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}
