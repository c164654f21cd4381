// Package natsbridge connects a node graph to NATS.
//
// InNode subscribes to subjects and emits what it receives. OutNode publishes
// what it receives to a subject. Both take a Dialer so tests can supply a fake
// Conn; NewDialer builds one over a real server with retried connection.
//
//	dial := natsbridge.NewDialer("nats://localhost:4222")
//	in, err := natsbridge.NewInNode("sensors", dial, natsbridge.InConfig{
//	    Subjects: []string{"sensors.>"},
//	})
//	if err != nil {
//	    return err
//	}
//	if err := in.Connect(ctx); err != nil {
//	    return err
//	}
//	defer in.Close()
package natsbridge
