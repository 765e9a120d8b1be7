// Package maelnode assembles a complete node from a config.Config: a journal,
// a transport over the configured streams, the node itself and, optionally,
// the HTTP introspection service.
//
//	conf := config.NewDefaultConfig()
//	engine := maelnode.NewMaelnode(conf)
//	if err := engine.Init(); err != nil {
//		return err
//	}
//	return engine.Run(ctx)
package maelnode
