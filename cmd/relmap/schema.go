package main

import (
	"fmt"
	"strings"

	"github.com/CaliLuke/go-relmap/orm"
	"github.com/CaliLuke/go-relmap/ruledsl"
)

// loadSchema declares a document's types into a fresh catalog and sets up
// its rules. The CLI holds one schema per invocation, so the registry is
// reset first.
func loadSchema(path string, exec orm.Executor, opts ...orm.SetupOption) (*orm.Schema, error) {
	doc, err := ruledsl.LoadDocumentFile(path)
	if err != nil {
		return nil, err
	}
	cat := orm.NewCatalog()
	if err := cat.DeclareDocument(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	opts = append([]orm.SetupOption{orm.WithCatalog(cat)}, opts...)
	if doc.Name != "" {
		opts = append(opts, orm.WithName(doc.Name))
	}
	orm.Reset()
	return orm.Setup(doc.Rules, exec, opts...)
}

// parseDestination reads Entity[@Alias][!][:prop=value,...]. A trailing !
// requests the destination as output.
func parseDestination(arg string) (orm.Destination, error) {
	head, filter, hasFilter := strings.Cut(arg, ":")
	var d orm.Destination
	if strings.HasSuffix(head, "!") {
		d.Output = true
		head = strings.TrimSuffix(head, "!")
	}
	d.Entity, d.Alias, _ = strings.Cut(head, "@")
	if d.Entity == "" {
		return d, fmt.Errorf("destination %q: missing entity name", arg)
	}
	if !hasFilter {
		return d, nil
	}
	d.Input = make(map[string]any)
	for _, kv := range strings.Split(filter, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return d, fmt.Errorf("destination %q: filter %q is not prop=value", arg, kv)
		}
		d.Input[k] = v
	}
	return d, nil
}

func parseDestinations(args []string) ([]orm.Destination, error) {
	dests := make([]orm.Destination, 0, len(args))
	for _, a := range args {
		d, err := parseDestination(a)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, nil
}
