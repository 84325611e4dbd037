// Package workspace reads and writes models: a root object file that names
// its class library by a path relative to itself.
//
//	m, err := workspace.Load(ctx, "car.json")
//	if err != nil {
//	    return err
//	}
//	flat, err := m.FlattenWithExtends(ctx)
//	if err != nil {
//	    return err
//	}
//	err = flat.SaveAs(ctx, "car_flat.json", 4)
//
// Model files may be JSON, YAML, CUE or Starlark scripts. Saving writes
// JSON or YAML, chosen by the file extension.
//
// LoadAll loads many models with a bounded pool of workers and hands each
// one to a callback, for batch validation.
package workspace
