// File: wsproto/permessage/doc.go
// Package permessage implements the RFC 7692 permessage-deflate extension:
// parsing and formatting of the Sec-WebSocket-Extensions header grammar,
// negotiation of the permessage-deflate parameters, and the compress/
// decompress codec built on compress/flate.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package permessage
