// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/flavienbert/digitalocean/internal/model"
)

// keyView is the serialized form of a key in json and yaml output.
type keyView struct {
	ID          string `json:"id" yaml:"id"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Name        string `json:"name" yaml:"name"`
	PublicKey   string `json:"public_key" yaml:"public_key"`
}

func viewOf(k model.Key) keyView {
	return keyView{ID: string(k.ID), Fingerprint: k.Fingerprint, Name: k.Name, PublicKey: k.PublicKey}
}

// writeKeys renders keys in the given format: table, json or yaml.
func writeKeys(w io.Writer, format string, keys []model.Key) error {
	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, viewOf(k))
	}

	switch format {
	case "", "table":
		if len(keys) == 0 {
			fmt.Fprintln(w, "No keys found.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFINGERPRINT")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, v.Fingerprint)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// writeKey prints the details of a single key.
func writeKey(w io.Writer, k model.Key) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", k.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", k.Name)
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", k.Fingerprint)
	fmt.Fprintf(tw, "Public key:\t%s\n", k.PublicKey)
	tw.Flush()
}
