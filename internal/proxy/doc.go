// Package proxy puts the remapping HTTP client in front of an upstream API.
//
// Server hosts a gin engine with recovery, request-ID, tracing, metrics and
// access-log middleware, the health endpoints and the metrics endpoint.
// Every other request falls through to a ReverseProxy whose transport is
// the remapping httpclient.Transport, so allow-listed request and response
// bodies have their fields renamed on the way through.
//
//	rp, err := proxy.NewReverseProxy(cfg.Spec.Proxy.Upstream,
//	    proxy.WithTransport(transport),
//	    proxy.WithProxyLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	srv := proxy.NewServer(serverConfig, rp, proxy.WithServerLogger(logger))
//	go srv.Start()
package proxy
