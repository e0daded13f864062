package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/injurystore/pkg/version"
)

func (a *app) versionCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.opts.Name
			if a.serviceNameOverride != "" {
				name = a.serviceNameOverride
			}
			info := version.Current(name)
			w := cmd.OutOrStdout()
			switch output {
			case "json":
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, string(data))
				return err
			case "yaml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			case "", "text":
				fmt.Fprintf(w, "Service:    %s\n", info.Service)
				fmt.Fprintf(w, "Version:    %s\n", info.Version)
				fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
				fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
				fmt.Fprintf(w, "Go:         %s\n", info.GoVersion)
				return nil
			default:
				return fmt.Errorf("unsupported output %q (text, json, yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}
