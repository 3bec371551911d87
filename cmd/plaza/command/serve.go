package command

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/cayleygraph/quad"
	xsdvoc "github.com/cayleygraph/quad/voc/xsd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cayleygraph/plaza/clog"
	plazahttp "github.com/cayleygraph/plaza/server/http"
	"github.com/cayleygraph/plaza/xsd"
)

var defaultCollections = []string{
	"tasks=title,owner:ref,done:boolean,points:long",
	"people=name,email",
}

// parseCollection parses name=field[:type],... where type is an XSD
// datatype name, a full datatype IRI or "ref" for entity references.
// Fields without a type are strings.
func parseCollection(s string) (plazahttp.Collection, error) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return plazahttp.Collection{}, fmt.Errorf("expected name=field,..., got %q", s)
	}
	c := plazahttp.Collection{Name: s[:i]}
	for _, f := range strings.Split(s[i+1:], ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		name, typ := f, ""
		if j := strings.IndexByte(f, ':'); j > 0 {
			name, typ = f[:j], f[j+1:]
		}
		field := plazahttp.Field{Name: name, Datatype: xsd.String}
		switch {
		case typ == "":
		case typ == "ref":
			field.Datatype = ""
		case strings.Contains(typ, "://"):
			field.Datatype = quad.IRI(typ)
		default:
			field.Datatype = quad.IRI(xsdvoc.NS + typ)
		}
		if field.Datatype != "" && !xsd.IsKnown(field.Datatype) {
			return c, fmt.Errorf("field %q: %w: %s", name, xsd.ErrUnknownDatatype, typ)
		}
		c.Fields = append(c.Fields, field)
	}
	return c, nil
}

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory remote store on the given host and port.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, _ := cmd.Flags().GetStringArray("collection")
			vocab, _ := cmd.Flags().GetString("vocabulary")
			colls := make([]plazahttp.Collection, 0, len(specs))
			for _, s := range specs {
				c, err := parseCollection(s)
				if err != nil {
					return err
				}
				colls = append(colls, c)
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/", plazahttp.New(vocab, colls...))
			host, _ := cmd.Flags().GetString("host")
			phost := host
			if host, port, err := net.SplitHostPort(host); err == nil && host == "" {
				phost = net.JoinHostPort("localhost", port)
			}
			clog.Infof("listening on %s, schema at http://%s/schema", host, phost)
			return http.ListenAndServe(host, mux)
		},
	}
	cmd.Flags().String("host", "127.0.0.1:64280", "host:port to listen on")
	cmd.Flags().String("vocabulary", plazahttp.DefaultVocabulary, "namespace of classes and properties")
	cmd.Flags().StringArray("collection", defaultCollections, "collection as name=field[:type],... (repeatable)")
	return cmd
}
