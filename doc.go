// Package raleighsl implements an in-memory, transactional, multi-object
// key/value store fronted by a custom asynchronous RPC server.
//
// The engine layer (internal/objectengine, internal/txn, internal/objects)
// is usable standalone for embedding or tests: create a Registry, register
// the built-in Plugs, and drive objects directly without a network layer
// at all. Server adds the poll-driven wire transport on top (TCP, a
// unix-domain stream socket, and a simplified one-packet-one-frame UDP
// endpoint), binding requests to the object/txn engine through the msg
// types protocol.go defines.
//
// Typical use:
//
//	srv, err := raleighsl.NewServer(raleighsl.DefaultServerParams())
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.ListenAndServe(ctx); err != nil {
//		log.Fatal(err)
//	}
package raleighsl
