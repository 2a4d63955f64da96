// Package hclnet reads and writes network descriptions in HCL:
//
//	network "mnist" {
//	  node "data" {
//	    kind   = "Dataset"
//	    params = { kind = "mnist", dir = "./data", batch_size = 64 }
//	  }
//	  node "fc" {
//	    kind   = "Linear"
//	    params = { in = 784, out = 10 }
//	  }
//	  link {
//	    from = "data"
//	    to   = "fc"
//	  }
//	}
//
// Parsed descriptors carry node refs and link input/output refs; ids are
// assigned later by neurons.Descriptor.ResolveRefs.
package hclnet

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/meikuraledutech/neurons"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type hclFile struct {
	Networks []*hclNetwork `hcl:"network,block"`
}

type hclNetwork struct {
	Name  string     `hcl:"name,label"`
	Nodes []*hclNode `hcl:"node,block"`
	Links []*hclLink `hcl:"link,block"`
}

type hclNode struct {
	Ref    string         `hcl:"ref,label"`
	Kind   string         `hcl:"kind"`
	Params hcl.Expression `hcl:"params,optional"`
}

type hclLink struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// ParseFile parses the networks defined in the file at path.
func ParseFile(path string) ([]*neurons.Descriptor, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclnet: failed to parse %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse parses networks from src. filename is used in diagnostics.
func Parse(src []byte, filename string) ([]*neurons.Descriptor, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclnet: failed to parse %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) ([]*neurons.Descriptor, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("hclnet: failed to decode %s: %w", filename, diags)
	}

	out := make([]*neurons.Descriptor, 0, len(parsed.Networks))
	for _, nw := range parsed.Networks {
		d, err := descriptor(nw)
		if err != nil {
			return nil, fmt.Errorf("hclnet: network %q in %s: %w", nw.Name, filename, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func descriptor(nw *hclNetwork) (*neurons.Descriptor, error) {
	d := &neurons.Descriptor{
		ID:    nw.Name,
		Nodes: make([]neurons.NodeDescriptor, 0, len(nw.Nodes)),
		Links: make([]neurons.LinkDescriptor, 0, len(nw.Links)),
	}
	seen := make(map[string]bool, len(nw.Nodes))
	for _, n := range nw.Nodes {
		if seen[n.Ref] {
			return nil, fmt.Errorf("duplicate node %q", n.Ref)
		}
		seen[n.Ref] = true

		kind, err := neurons.ParseKind(n.Kind)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Ref, err)
		}
		params, err := paramsJSON(n.Params)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Ref, err)
		}
		d.Nodes = append(d.Nodes, neurons.NodeDescriptor{Ref: n.Ref, Kind: kind, Params: params})
	}
	for _, l := range nw.Links {
		for _, ref := range []string{l.From, l.To} {
			if !seen[ref] {
				return nil, fmt.Errorf("%w: %q", neurons.ErrUnknownRef, ref)
			}
		}
		d.Links = append(d.Links, neurons.LinkDescriptor{InputRef: l.From, OutputRef: l.To})
	}
	return d, nil
}

// paramsJSON evaluates a params expression, which must be an object, and
// encodes it as JSON. A missing or null expression yields nil.
func paramsJSON(expr hcl.Expression) ([]byte, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", val.Type().FriendlyName())
	}
	return ctyjson.Marshal(val, val.Type())
}

// Encode writes descriptors as HCL. Nodes get refs derived from their ids.
func Encode(ds ...*neurons.Descriptor) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	for i, d := range ds {
		if i > 0 {
			root.AppendNewline()
		}
		nb := root.AppendNewBlock("network", []string{d.ID}).Body()
		for _, n := range d.Nodes {
			body := nb.AppendNewBlock("node", []string{ref(n.ID)}).Body()
			body.SetAttributeValue("kind", cty.StringVal(n.Kind.String()))
			if len(bytes.TrimSpace(n.Params)) == 0 {
				continue
			}
			ty, err := ctyjson.ImpliedType(n.Params)
			if err != nil {
				return nil, fmt.Errorf("hclnet: node %d params: %w", n.ID, err)
			}
			val, err := ctyjson.Unmarshal(n.Params, ty)
			if err != nil {
				return nil, fmt.Errorf("hclnet: node %d params: %w", n.ID, err)
			}
			if !val.IsNull() {
				body.SetAttributeValue("params", val)
			}
		}
		for _, l := range d.Links {
			body := nb.AppendNewBlock("link", nil).Body()
			body.SetAttributeValue("from", cty.StringVal(ref(l.Input)))
			body.SetAttributeValue("to", cty.StringVal(ref(l.Output)))
		}
	}
	return f.Bytes(), nil
}

func ref(id int64) string { return "n" + strconv.FormatInt(id, 10) }
