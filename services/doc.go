/*
Package services provides the mamchan gateway, an HTTP front end that holds
channels and subscriptions on behalf of clients that do not run the protocol
themselves.

# Channels

A channel is created with POST /channels and addressed by the returned id.
The gateway keeps the channel seed; responses carry only the current root
and state. Messages posted to /channels/{id}/messages are encoded, signed
and attached to the ledger:

	POST /channels {"mode": "restricted", "side_key": "VERYSECRETKEY"}
	POST /channels/{id}/messages <raw body>

# Side keys

Restricted channels take either a literal side_key or a peer_exchange_key.
With a peer key the side key is derived by X25519 agreement with the
gateway's exchange key (GET /exchange-key), so two gateways that exchange
public keys arrive at the same side key without sending it.

# Subscriptions

POST /subscriptions starts a listener that polls the ledger from a root.
Received messages are buffered up to GatewayConfig.MaxBufferedMessages, oldest
dropped first, and handed out by GET /subscriptions/{id}. Polls of one
subscription never overlap.

GET /fetch/{root} is a one-shot read returning the messages and the cursor to
resume from. A restricted side key is sent in the X-Side-Key header, never in
the query string.
*/
package services
