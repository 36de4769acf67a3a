// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. The
// service is registered as "Blackbox"; reuse these types when adding new RPC
// endpoints to keep the protocol stable for existing commands.
package ipc
