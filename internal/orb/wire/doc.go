// Package wire is the TCP transport for orb objects.
//
// One JSON request per line, one JSON response per line:
//
//	{"id":1,"object":"rtc.<uuid>","method":"component.ports"}
//	{"id":1,"ok":true,"data":[{"id":"port.<uuid>","addr":"10.0.0.2:2809","caps":["port"]}]}
//
// References travel as ObjectRef values. Failures carry a code that maps back
// to the orb sentinel errors on the client side.
package wire
