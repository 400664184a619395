/*
Package patchbay routes audio graphs of a host audio runtime.

Concept

This package is the control plane of an instrument voice. It never
touches samples: the host runtime renders them on its own thread. The
control plane builds the graph, wires it and automates parameters, and
every instruction it issues to the host is one-way and timestamped on
the audio clock:

    host.Node - a native processing unit of the runtime;
    node.Adapter - wraps native node with uniform connect, disconnect and
        parameter contract and keeps bookkeeping of edges on both ends;
    Bus - a named graph of adapters and effects.

Nodes

Every adapter is registered in a registry.Registry owned by the engine
instance. Ids are issued once and never reused:

    reg := registry.New()
    gain, err := node.Create(ctx, reg, host.NodeConfig{Kind: host.Gain}, "gain")

Routing

Bus addresses nodes by names. Every edge is recorded in the routing
table:

    b, err := patchbay.New(ctx, reg)
    b.AddNode("input", input)
    b.AddNode("output", output)
    b.ConnectChain("input", "output")

Effects are added with sends. Send is a gain node in front of the effect
and its level is zero, so effect is inert until send is opened:

    b.AddEffect("reverb", reverb)
    b.SetSendAmount("reverb", 0.5)

Default returns the bus with reference topology of instrument voice.

Errors

Setters never fail. Unknown names, unknown parameters and non-finite
values are logged as warnings and ignored, so a running graph is never
left in inconsistent state. Only construction returns errors.

Teardown

Dispose disconnects all edges of the bus nodes and unregisters them.
Calling it more than once is safe.
*/
package patchbay
