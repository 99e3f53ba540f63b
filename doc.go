package main

// embers serves a small animated fireplace that exists to produce telemetry.
// The browser owns the flame count; every report it sends back becomes logs,
// metrics, and trace spans proportional to that count:
//
// - a load-change report (the on-screen buttons or the + and - keys) sets the
// flame count gauge, counts the click by action, rerolls the fire
// temperature, adds sparks, and logs the interaction.
//
// - a render report (every 60 animation frames) records the measured render
// duration in a histogram and emits ceil(flames/5) log records tagged with
// the frame timing.
//
// - a periodic report (sent more often as the flames rise) emits
// ceil(flames/3) log records with mixed severities and a line of fireside
// flavor text.
//
// All three signals are pushed over OTLP (http or grpc) to whatever
// collector is configured; the same metrics are served to Prometheus on
// /metrics, and /health answers probes. The point is a load source for
// observability pipelines that a human can drive by eye: park a browser on
// it, drag the flames up, and watch your ingest dashboards move.
//
// The server holds no state beyond the instruments themselves. The browser
// re-seeds it with an "initial" load change on page load, so restarting
// either side recovers on its own.
//
// For a headless driver that generates the same traffic without a browser,
// see cmd/stoker. For a terminal OTLP receiver to aim at while developing,
// see cmd/embersink.
