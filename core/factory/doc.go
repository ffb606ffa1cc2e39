// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is a type string plus a map of raw settings;
// its factory decodes the settings into a typed struct.
//
//	reg := factory.NewRegistry[routing.Oracle]("routing provider")
//	reg.MustRegister("simulated", func(conf map[string]any) (routing.Oracle, error) {
//	    var c SimulatedConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewSimulated(c), nil
//	})
package factory
